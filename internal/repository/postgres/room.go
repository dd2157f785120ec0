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

func (s *Storage) RoomByTgChatID(ctx context.Context, tgChatID int64) (*models.Room, error) {
	query := `SELECT id, tg_chat_id, owner_id, name, subject_id, purpose, invite_link, created_at, updated_at
	          FROM rooms WHERE tg_chat_id = $1`

	var r models.Room
	err := s.db.QueryRow(ctx, query, tgChatID).Scan(
		&r.ID, &r.TgChatID, &r.OwnerID, &r.Name, &r.SubjectID, &r.Purpose, &r.InviteLink, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrRoomNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &r, nil
}

// CreateRoomWithOwner создаёт комнату и членство владельца одной
// транзакцией: комната без владельца в БД не появляется.
func (s *Storage) CreateRoomWithOwner(ctx context.Context, draft models.RoomDraft) (int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO rooms(tg_chat_id, owner_id, name, subject_id, purpose, invite_link, created_at, updated_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		draft.TgChatID, draft.OwnerID, draft.Name, draft.SubjectID, draft.Purpose, draft.InviteLink, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO room_members(room_id, user_id, joined_at) VALUES($1, $2, $3)`,
		id, draft.OwnerID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

func (s *Storage) UpdateRoomPurpose(ctx context.Context, roomID int64, purpose models.Purpose) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE rooms SET purpose = $2, updated_at = $3 WHERE id = $1`,
		roomID, purpose, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrRoomNotFound
	}

	return nil
}

// DeleteRoom удаляет комнату вместе с членствами одной транзакцией.
// Оценки комнаты сохраняются.
func (s *Storage) DeleteRoom(ctx context.Context, roomID int64) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM room_members WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrRoomNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *Storage) Members(ctx context.Context, roomID int64) ([]models.Member, error) {
	query := `SELECT m.user_id, u.tg_user_id, u.first_name, m.joined_at
	          FROM room_members m
	          JOIN users u ON u.id = m.user_id
	          WHERE m.room_id = $1
	          ORDER BY m.joined_at`

	rows, err := s.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.TgUserID, &m.FirstName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return members, nil
}

func (s *Storage) RemoveMember(ctx context.Context, roomID, userID int64) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`,
		roomID, userID,
	); err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	return nil
}
