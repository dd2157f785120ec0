package models

import "time"

// Rating представляет анонимную оценку завершённой тьютории.
// Идентификатор студента намеренно не сохраняется.
type Rating struct {
	ID        int64     `db:"id"`
	RoomID    int64     `db:"room_id"`
	Stars     int       `db:"stars"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
}

// ValidStars проверяет, что оценка лежит в диапазоне 1..5
func ValidStars(n int) bool {
	return n >= 1 && n <= 5
}
