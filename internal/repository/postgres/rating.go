package postgres

import (
	"context"
	"fmt"
	"time"

	"tutoriasBot/internal/domain/models"
)

// SaveRating сохраняет оценку. Ссылки на студента в записи нет.
func (s *Storage) SaveRating(ctx context.Context, rating *models.Rating) error {
	query := `INSERT INTO ratings(room_id, stars, comment, created_at)
	          VALUES($1, $2, $3, $4) RETURNING id`

	err := s.db.QueryRow(ctx, query,
		rating.RoomID, rating.Stars, rating.Comment, time.Now(),
	).Scan(&rating.ID)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	return nil
}
