package models

import "time"

// Role представляет роль пользователя в системе
type Role string

const (
	RoleStudent Role = "estudiante"
	RoleTutor   Role = "tutor"
)

// User представляет зарегистрированного пользователя бота
type User struct {
	ID        int64     `db:"id"`
	TgUserID  int64     `db:"tg_user_id"`
	Email     string    `db:"email"`
	FirstName string    `db:"first_name"`
	Role      Role      `db:"role"`
	CarreraID int64     `db:"carrera_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Carrera представляет направление обучения (carrera)
type Carrera struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Subject представляет учебный предмет, к которому можно привязать комнату
type Subject struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func (u *User) IsTutor() bool {
	return u != nil && u.Role == RoleTutor
}
