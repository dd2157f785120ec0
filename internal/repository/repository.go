package repository

import (
	"context"
	"errors"

	"tutoriasBot/internal/domain/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
)

// Repository — контракт хранилища. Диалоговые сценарии пишут в БД только
// на границах завершения шага; черновики диалогов в БД не попадают.
type Repository interface {
	// Users
	UserByTgID(ctx context.Context, tgUserID int64) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) (int64, error)
	Carreras(ctx context.Context) ([]models.Carrera, error)
	Subjects(ctx context.Context) ([]models.Subject, error)

	// Schedules
	Schedule(ctx context.Context, userID int64) (string, error)
	SaveSchedule(ctx context.Context, userID int64, serialized string) error

	// Rooms. CreateRoomWithOwner и DeleteRoom — по одной транзакции:
	// комната и членство владельца создаются (и удаляются) атомарно.
	RoomByTgChatID(ctx context.Context, tgChatID int64) (*models.Room, error)
	CreateRoomWithOwner(ctx context.Context, draft models.RoomDraft) (int64, error)
	UpdateRoomPurpose(ctx context.Context, roomID int64, purpose models.Purpose) error
	DeleteRoom(ctx context.Context, roomID int64) error
	Members(ctx context.Context, roomID int64) ([]models.Member, error)
	RemoveMember(ctx context.Context, roomID, userID int64) error

	// Ratings
	SaveRating(ctx context.Context, rating *models.Rating) error
}
