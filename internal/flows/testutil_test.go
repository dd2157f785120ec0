package flows

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tutoriasBot/internal/domain/models"
	"tutoriasBot/internal/engine"
	"tutoriasBot/internal/repository"
	"tutoriasBot/internal/state"
	"tutoriasBot/internal/telegram"
)

// actionLog собирает действия фейков в порядке вызова: тесты завершения
// тьюторий проверяют, что оценка записывается раньше исключения.
type actionLog struct {
	entries []string
}

func (l *actionLog) add(format string, args ...any) {
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

type fakeGateway struct {
	log *actionLog

	sendErr error
	banErr  error

	inviteLink string
	nextMsgID  int
}

func (g *fakeGateway) Send(chatID int64, text string) (int, error) {
	if g.sendErr != nil {
		return 0, g.sendErr
	}
	g.log.add("send %d %s", chatID, text)
	g.nextMsgID++
	return g.nextMsgID, nil
}

func (g *fakeGateway) SendKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error) {
	g.log.add("send_kb %d %s", chatID, text)
	g.nextMsgID++
	return g.nextMsgID, nil
}

func (g *fakeGateway) Edit(chatID int64, messageID int, text string) error {
	g.log.add("edit %d %s", chatID, text)
	return nil
}

func (g *fakeGateway) EditKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	g.log.add("edit_kb %d %s", chatID, text)
	return nil
}

func (g *fakeGateway) Delete(chatID int64, messageID int) error {
	g.log.add("delete %d %d", chatID, messageID)
	return nil
}

func (g *fakeGateway) Ban(chatID, userID int64, until time.Time) error {
	if g.banErr != nil {
		return g.banErr
	}
	g.log.add("ban %d %d", chatID, userID)
	return nil
}

func (g *fakeGateway) InviteLink(chatID int64) (string, error) {
	if g.inviteLink == "" {
		return "https://t.me/+invite", nil
	}
	return g.inviteLink, nil
}

func (g *fakeGateway) AnswerCallback(callbackID string) error { return nil }

// lastText возвращает текст последнего исходящего действия
func (g *fakeGateway) lastText() string {
	if len(g.log.entries) == 0 {
		return ""
	}
	return g.log.entries[len(g.log.entries)-1]
}

type fakeMailer struct {
	sent    []string // адреса
	bodies  []string
	sendErr error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, to)
	m.bodies = append(m.bodies, body)
	return nil
}

// lastCode вытаскивает 6-значный код из последнего письма
func (m *fakeMailer) lastCode() string {
	if len(m.bodies) == 0 {
		return ""
	}
	body := m.bodies[len(m.bodies)-1]
	for _, word := range strings.Fields(body) {
		trimmed := strings.Trim(word, ".,:")
		if len(trimmed) == 6 && strings.IndexFunc(trimmed, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
			return trimmed
		}
	}
	return ""
}

type fakeService struct {
	log *actionLog

	users     []*models.User
	carreras  []models.Carrera
	subjects  []models.Subject
	schedules map[int64]string
	rooms     []*models.Room
	members   map[int64][]models.Member
	ratings   []models.Rating

	nextUserID int64
	nextRoomID int64

	saveScheduleErr error
	createRoomErr   error
	updateRoomErr   error
	deleteRoomErr   error
	saveRatingErr   error
}

func newFakeService(log *actionLog) *fakeService {
	return &fakeService{
		log:        log,
		carreras:   []models.Carrera{{ID: 1, Name: "Matemáticas"}, {ID: 2, Name: "Informática"}},
		subjects:   []models.Subject{{ID: 1, Name: "Álgebra"}, {ID: 2, Name: "Cálculo"}},
		schedules:  make(map[int64]string),
		members:    make(map[int64][]models.Member),
		nextUserID: 100,
		nextRoomID: 500,
	}
}

func (s *fakeService) UserByTgID(ctx context.Context, tgUserID int64) (*models.User, error) {
	for _, u := range s.users {
		if u.TgUserID == tgUserID {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *fakeService) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *fakeService) RegisterUser(ctx context.Context, user models.User) (int64, error) {
	if _, err := s.UserByTgID(ctx, user.TgUserID); err == nil {
		return 0, repository.ErrUserAlreadyExists
	}
	s.nextUserID++
	user.ID = s.nextUserID
	s.users = append(s.users, &user)
	s.log.add("register_user %d", user.TgUserID)
	return user.ID, nil
}

func (s *fakeService) Carreras(ctx context.Context) ([]models.Carrera, error) {
	return s.carreras, nil
}

func (s *fakeService) Subjects(ctx context.Context) ([]models.Subject, error) {
	return s.subjects, nil
}

func (s *fakeService) Schedule(ctx context.Context, userID int64) (string, error) {
	return s.schedules[userID], nil
}

func (s *fakeService) SaveSchedule(ctx context.Context, userID int64, serialized string) error {
	if s.saveScheduleErr != nil {
		return s.saveScheduleErr
	}
	s.schedules[userID] = serialized
	s.log.add("save_schedule %d %s", userID, serialized)
	return nil
}

func (s *fakeService) RoomByTgChatID(ctx context.Context, tgChatID int64) (*models.Room, error) {
	for _, r := range s.rooms {
		if r.TgChatID == tgChatID {
			return r, nil
		}
	}
	return nil, repository.ErrRoomNotFound
}

func (s *fakeService) CreateRoom(ctx context.Context, draft models.RoomDraft) (int64, error) {
	if s.createRoomErr != nil {
		return 0, s.createRoomErr
	}
	if _, err := s.RoomByTgChatID(ctx, draft.TgChatID); err == nil {
		return 0, repository.ErrRoomAlreadyExists
	}
	s.nextRoomID++
	room := &models.Room{
		ID:         s.nextRoomID,
		TgChatID:   draft.TgChatID,
		OwnerID:    draft.OwnerID,
		Name:       draft.Name,
		SubjectID:  draft.SubjectID,
		Purpose:    draft.Purpose,
		InviteLink: draft.InviteLink,
	}
	s.rooms = append(s.rooms, room)
	s.log.add("create_room %d %s", draft.TgChatID, draft.Name)
	return room.ID, nil
}

func (s *fakeService) UpdateRoomPurpose(ctx context.Context, roomID int64, purpose models.Purpose) error {
	if s.updateRoomErr != nil {
		return s.updateRoomErr
	}
	for _, r := range s.rooms {
		if r.ID == roomID {
			r.Purpose = purpose
			s.log.add("update_purpose %d %s", roomID, purpose)
			return nil
		}
	}
	return repository.ErrRoomNotFound
}

func (s *fakeService) DeleteRoom(ctx context.Context, roomID int64) error {
	if s.deleteRoomErr != nil {
		return s.deleteRoomErr
	}
	for i, r := range s.rooms {
		if r.ID == roomID {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			delete(s.members, roomID)
			s.log.add("delete_room %d", roomID)
			return nil
		}
	}
	return repository.ErrRoomNotFound
}

func (s *fakeService) Members(ctx context.Context, roomID int64) ([]models.Member, error) {
	return s.members[roomID], nil
}

func (s *fakeService) RemoveMember(ctx context.Context, roomID, userID int64) error {
	list := s.members[roomID]
	for i, m := range list {
		if m.UserID == userID {
			s.members[roomID] = append(list[:i], list[i+1:]...)
			s.log.add("remove_member %d %d", roomID, userID)
			return nil
		}
	}
	return nil
}

func (s *fakeService) SaveRating(ctx context.Context, rating *models.Rating) error {
	if s.saveRatingErr != nil {
		return s.saveRatingErr
	}
	s.ratings = append(s.ratings, *rating)
	s.log.add("save_rating %d %d", rating.RoomID, rating.Stars)
	return nil
}

// env собирает сценарии с фейковыми зависимостями и гоняет события через
// настоящий движок.
type env struct {
	t        *testing.T
	eng      *engine.Engine
	states   *state.Store
	lockouts *state.Lockouts
	gw       *fakeGateway
	svc      *fakeService
	mailer   *fakeMailer
	actions  *actionLog
	now      time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()

	actions := &actionLog{}
	e := &env{
		t:       t,
		states:  state.NewStore(),
		gw:      &fakeGateway{log: actions},
		svc:     newFakeService(actions),
		mailer:  &fakeMailer{},
		actions: actions,
		now:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	e.lockouts = state.NewLockoutsWithClock(func() time.Time { return e.now })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.eng = engine.New(log, e.states)

	RegisterAll(e.eng, Deps{
		Log:      log,
		States:   e.states,
		Lockouts: e.lockouts,
		Gateway:  e.gw,
		Service:  e.svc,
		Mailer:   e.mailer,
		Cfg: Config{
			EmailDomain:     "correo.ugr.es",
			CodeTTL:         3 * time.Minute,
			MaxCodeAttempts: 3,
			LockoutDuration: 30 * time.Minute,
			BanDuration:     time.Minute,
		},
		Now: func() time.Time { return e.now },
	})

	return e
}

func (e *env) message(chatID, userID int64, text string) {
	ev := engine.Event{
		Kind:      engine.KindMessage,
		ChatID:    chatID,
		UserID:    userID,
		FirstName: "Ana",
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.TrimPrefix(text, "/")
		if i := strings.IndexByte(cmd, ' '); i >= 0 {
			cmd = cmd[:i]
		}
		ev.Command = cmd
	}
	e.eng.Dispatch(context.Background(), ev)
}

func (e *env) callback(chatID, userID int64, data string) {
	decoded, err := telegram.DecodeCallback(data)
	if err != nil {
		e.t.Fatalf("test callback %q does not decode: %v", data, err)
	}
	e.eng.Dispatch(context.Background(), engine.Event{
		Kind:      engine.KindCallback,
		ChatID:    chatID,
		UserID:    userID,
		FirstName: "Ana",
		Text:      data,
		MessageID: 1,
		Callback:  decoded,
	})
}

func (e *env) promotion(chatID, byUserID int64, title string, canInvite, canRestrict bool) {
	e.eng.Dispatch(context.Background(), engine.Event{
		Kind:   engine.KindPromotion,
		ChatID: chatID,
		UserID: byUserID,
		Promotion: &engine.Promotion{
			PromotedBy:  byUserID,
			ChatTitle:   title,
			CanInvite:   canInvite,
			CanRestrict: canRestrict,
		},
	})
}

func (e *env) wantLabel(id state.Identity, want state.Label) {
	e.t.Helper()
	got, ok := e.states.Get(id)
	if !ok {
		e.t.Fatalf("no state entry for %v, want %q", id, want)
	}
	if got != want {
		e.t.Fatalf("state label = %q, want %q", got, want)
	}
}

func (e *env) wantNoState(id state.Identity) {
	e.t.Helper()
	if got, ok := e.states.Get(id); ok {
		e.t.Fatalf("unexpected state entry %q for %v", got, id)
	}
}

// addUser регистрирует пользователя напрямую в фейке
func (e *env) addUser(tgID int64, email string, role models.Role) *models.User {
	e.svc.nextUserID++
	u := &models.User{
		ID:        e.svc.nextUserID,
		TgUserID:  tgID,
		Email:     email,
		FirstName: "Ana",
		Role:      role,
		CarreraID: 1,
	}
	e.svc.users = append(e.svc.users, u)
	return u
}

// addRoom создаёт комнату с владельцем-членом напрямую в фейке
func (e *env) addRoom(tgChatID int64, owner *models.User) *models.Room {
	e.svc.nextRoomID++
	room := &models.Room{
		ID:         e.svc.nextRoomID,
		TgChatID:   tgChatID,
		OwnerID:    owner.ID,
		Name:       "Tutorías",
		Purpose:    models.PurposeGroup,
		InviteLink: "https://t.me/+invite",
	}
	e.svc.rooms = append(e.svc.rooms, room)
	e.svc.members[room.ID] = append(e.svc.members[room.ID], models.Member{
		UserID: owner.ID, TgUserID: owner.TgUserID, FirstName: owner.FirstName,
	})
	return room
}

// addMember добавляет студента в комнату напрямую в фейке
func (e *env) addMember(room *models.Room, u *models.User) {
	e.svc.members[room.ID] = append(e.svc.members[room.ID], models.Member{
		UserID: u.ID, TgUserID: u.TgUserID, FirstName: u.FirstName,
	})
}
