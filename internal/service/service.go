package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tutoriasBot/internal/domain/models"
	"tutoriasBot/internal/pkg/logger/sl"
	"tutoriasBot/internal/repository"
)

// Service — доменные операции над хранилищем. Каждая операция — одна
// логическая запись; многострочные изменения инкапсулированы в репозитории
// транзакциями.
type Service struct {
	log  *slog.Logger
	repo repository.Repository
}

func New(log *slog.Logger, repo repository.Repository) *Service {
	return &Service{
		log:  log,
		repo: repo,
	}
}

func (s *Service) UserByTgID(ctx context.Context, tgUserID int64) (*models.User, error) {
	return s.repo.UserByTgID(ctx, tgUserID)
}

func (s *Service) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repo.UserByEmail(ctx, email)
}

// RegisterUser сохраняет нового пользователя. Повторная регистрация того же
// Telegram-аккаунта или почты отклоняется.
func (s *Service) RegisterUser(ctx context.Context, user models.User) (int64, error) {
	const op = "Service.RegisterUser"

	log := s.log.With(slog.String("op", op), slog.Int64("tg_user_id", user.TgUserID))

	if _, err := s.repo.UserByTgID(ctx, user.TgUserID); err == nil {
		return 0, repository.ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		log.Error("failed to create user", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("user_id", id))
	return id, nil
}

func (s *Service) Carreras(ctx context.Context) ([]models.Carrera, error) {
	return s.repo.Carreras(ctx)
}

func (s *Service) Subjects(ctx context.Context) ([]models.Subject, error) {
	return s.repo.Subjects(ctx)
}

func (s *Service) Schedule(ctx context.Context, userID int64) (string, error) {
	return s.repo.Schedule(ctx, userID)
}

func (s *Service) SaveSchedule(ctx context.Context, userID int64, serialized string) error {
	const op = "Service.SaveSchedule"

	if err := s.repo.SaveSchedule(ctx, userID, serialized); err != nil {
		s.log.Error("failed to save schedule", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) RoomByTgChatID(ctx context.Context, tgChatID int64) (*models.Room, error) {
	return s.repo.RoomByTgChatID(ctx, tgChatID)
}

// CreateRoom создаёт комнату вместе с членством владельца одной транзакцией
func (s *Service) CreateRoom(ctx context.Context, draft models.RoomDraft) (int64, error) {
	const op = "Service.CreateRoom"

	log := s.log.With(slog.String("op", op), slog.Int64("tg_chat_id", draft.TgChatID))

	if _, err := s.repo.RoomByTgChatID(ctx, draft.TgChatID); err == nil {
		return 0, repository.ErrRoomAlreadyExists
	} else if !errors.Is(err, repository.ErrRoomNotFound) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.repo.CreateRoomWithOwner(ctx, draft)
	if err != nil {
		log.Error("failed to create room", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("room created", slog.Int64("room_id", id), slog.String("name", draft.Name))
	return id, nil
}

func (s *Service) UpdateRoomPurpose(ctx context.Context, roomID int64, purpose models.Purpose) error {
	const op = "Service.UpdateRoomPurpose"

	if err := s.repo.UpdateRoomPurpose(ctx, roomID, purpose); err != nil {
		s.log.Error("failed to update purpose", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) DeleteRoom(ctx context.Context, roomID int64) error {
	const op = "Service.DeleteRoom"

	if err := s.repo.DeleteRoom(ctx, roomID); err != nil {
		s.log.Error("failed to delete room", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("room deleted", slog.Int64("room_id", roomID))
	return nil
}

func (s *Service) Members(ctx context.Context, roomID int64) ([]models.Member, error) {
	return s.repo.Members(ctx, roomID)
}

func (s *Service) RemoveMember(ctx context.Context, roomID, userID int64) error {
	const op = "Service.RemoveMember"

	if err := s.repo.RemoveMember(ctx, roomID, userID); err != nil {
		s.log.Error("failed to remove member", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) SaveRating(ctx context.Context, rating *models.Rating) error {
	const op = "Service.SaveRating"

	if err := s.repo.SaveRating(ctx, rating); err != nil {
		s.log.Error("failed to save rating", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
