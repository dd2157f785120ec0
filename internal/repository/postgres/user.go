package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tutoriasBot/internal/domain/models"
	repo "tutoriasBot/internal/repository"
)

func (s *Storage) UserByTgID(ctx context.Context, tgUserID int64) (*models.User, error) {
	query := `SELECT id, tg_user_id, email, first_name, role, carrera_id, created_at, updated_at
	          FROM users WHERE tg_user_id = $1`

	var u models.User
	err := s.db.QueryRow(ctx, query, tgUserID).Scan(
		&u.ID, &u.TgUserID, &u.Email, &u.FirstName, &u.Role, &u.CarreraID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &u, nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, tg_user_id, email, first_name, role, carrera_id, created_at, updated_at
	          FROM users WHERE email = $1`

	var u models.User
	err := s.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.TgUserID, &u.Email, &u.FirstName, &u.Role, &u.CarreraID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &u, nil
}

func (s *Storage) CreateUser(ctx context.Context, user models.User) (int64, error) {
	query := `INSERT INTO users(tg_user_id, email, first_name, role, carrera_id, created_at, updated_at)
	          VALUES($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	now := time.Now()

	var id int64
	err := s.db.QueryRow(ctx, query,
		user.TgUserID, user.Email, user.FirstName, user.Role, user.CarreraID, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}

	return id, nil
}

func (s *Storage) Carreras(ctx context.Context) ([]models.Carrera, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM carreras ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var carreras []models.Carrera
	for rows.Next() {
		var c models.Carrera
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		carreras = append(carreras, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return carreras, nil
}

func (s *Storage) Subjects(ctx context.Context) ([]models.Subject, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM subjects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var subjects []models.Subject
	for rows.Next() {
		var sub models.Subject
		if err := rows.Scan(&sub.ID, &sub.Name); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return subjects, nil
}
