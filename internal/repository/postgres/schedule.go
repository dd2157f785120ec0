package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Schedule возвращает сериализованное расписание тьютора. Отсутствие
// записи — не ошибка: у нового тьютора расписание пустое.
func (s *Storage) Schedule(ctx context.Context, userID int64) (string, error) {
	query := `SELECT serialized FROM schedules WHERE user_id = $1`

	var serialized string
	err := s.db.QueryRow(ctx, query, userID).Scan(&serialized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("database error: %w", err)
	}

	return serialized, nil
}

func (s *Storage) SaveSchedule(ctx context.Context, userID int64, serialized string) error {
	query := `INSERT INTO schedules(user_id, serialized, updated_at)
	          VALUES($1, $2, $3)
	          ON CONFLICT (user_id) DO UPDATE SET serialized = $2, updated_at = $3`

	if _, err := s.db.Exec(ctx, query, userID, serialized, time.Now()); err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	return nil
}
