// Package flows содержит диалоговые сценарии бота: регистрацию,
// редактор расписания, жизненный цикл комнат и завершение тьюторий
// с оценкой. Каждый сценарий — свой граф состояний поверх общего движка.
package flows

import (
	"context"
	"log/slog"
	"time"

	"tutoriasBot/internal/domain/models"
	"tutoriasBot/internal/engine"
	"tutoriasBot/internal/state"
	"tutoriasBot/internal/telegram"
)

// Метки шагов диалогов. Chat-пространство: регистрация, расписание,
// комнаты. User-пространство: подтверждение выхода и оценка.
const (
	StateAwaitingEmail         state.Label = "awaiting_email"
	StateAwaitingCode          state.Label = "awaiting_verification_token"
	StateAwaitingCarrera       state.Label = "awaiting_carrera_selection"
	StateSelectingDay          state.Label = "selecting_day"
	StateManagingSlots         state.Label = "managing_slots"
	StateEnteringSlot          state.Label = "entering_slot"
	StateAwaitingRoomName      state.Label = "awaiting_room_name"
	StateAwaitingSubject       state.Label = "awaiting_subject_choice"
	StateAwaitingPurpose       state.Label = "awaiting_purpose_choice"
	StateChoosingNewPurpose    state.Label = "choosing_new_purpose"
	StateAwaitingDisposition   state.Label = "awaiting_member_disposition"
	StateAwaitingDeleteConfirm state.Label = "awaiting_delete_confirm"
	StateSelectingStudent      state.Label = "selecting_student"
	StateConfirmingExit        state.Label = "confirming_exit"
	StateChoosingScore         state.Label = "choosing_score"
	StateScoreChosen           state.Label = "score_chosen"
	StateAwaitingComment       state.Label = "awaiting_comment_text"
)

// Ключи аккумулятора диалога
const (
	keyEmail          = "email"
	keyFirstName      = "first_name"
	keyCode           = "code"
	keyCodeExpires    = "code_expires"
	keyAttempts       = "attempts"
	keyDraft          = "draft"
	keyDay            = "day"
	keyEditIndex      = "edit_index"
	keyTutorID        = "tutor_id"
	keyRoomDraft      = "room_draft"
	keyRoomID         = "room_id"
	keyNewPurpose     = "new_purpose"
	keyNonce          = "nonce"
	keyPromptMsgID    = "prompt_msg_id"
	keyOwnerTgID      = "owner_tg_id"
	keyStars          = "stars"
	keyTgChatID       = "tg_chat_id"
	keyMemberID       = "member_id"
	keyPendingRemoval = "pending_removal"
)

// Service — операции персистентности, нужные сценариям
type Service interface {
	UserByTgID(ctx context.Context, tgUserID int64) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	RegisterUser(ctx context.Context, user models.User) (int64, error)
	Carreras(ctx context.Context) ([]models.Carrera, error)
	Subjects(ctx context.Context) ([]models.Subject, error)
	Schedule(ctx context.Context, userID int64) (string, error)
	SaveSchedule(ctx context.Context, userID int64, serialized string) error
	RoomByTgChatID(ctx context.Context, tgChatID int64) (*models.Room, error)
	CreateRoom(ctx context.Context, draft models.RoomDraft) (int64, error)
	UpdateRoomPurpose(ctx context.Context, roomID int64, purpose models.Purpose) error
	DeleteRoom(ctx context.Context, roomID int64) error
	Members(ctx context.Context, roomID int64) ([]models.Member, error)
	RemoveMember(ctx context.Context, roomID, userID int64) error
	SaveRating(ctx context.Context, rating *models.Rating) error
}

// Mailer отправляет письма с кодом подтверждения
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config — настройки сценариев
type Config struct {
	EmailDomain     string        // домен институтской почты, напр. "correo.ugr.es"
	CodeTTL         time.Duration // срок жизни кода подтверждения
	MaxCodeAttempts int           // неверных кодов до блокировки
	LockoutDuration time.Duration // длительность блокировки регистрации
	BanDuration     time.Duration // «мягкое исключение»: бан с возвратом
}

// Deps — общие зависимости всех сценариев
type Deps struct {
	Log      *slog.Logger
	States   *state.Store
	Lockouts *state.Lockouts
	Gateway  telegram.Gateway
	Service  Service
	Mailer   Mailer
	Cfg      Config
	Now      func() time.Time
}

// RegisterAll регистрирует все сценарии. Командные гарды идут раньше
// гардов свободного текста, чтобы команда не утонула в захвате текста.
func RegisterAll(e *engine.Engine, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}

	registerHelp(e, d)
	registerCancel(e, d)
	NewRegistration(d).register(e)
	NewScheduleEditor(d).register(e)
	NewRooms(d).register(e)
	NewRating(d).register(e)
}

// notCommand отсекает команды в гардах захвата свободного текста
func notCommand(ev engine.Event) bool {
	return ev.Command == ""
}

const helpText = `📚 <b>Bot de tutorías académicas</b>

/start — registrarse con el correo institucional
/configurar_horario — editar tu horario de tutorías (tutores)
/finalizar_tutoria — terminar una sesión en la sala
/cambiar_proposito — cambiar el propósito de la sala (tutores)
/eliminar_sala — eliminar la sala (tutores)
/cancelar — cancelar la operación en curso

Para crear una sala, añade el bot a un grupo y hazlo administrador.`

func registerHelp(e *engine.Engine, d Deps) {
	fn := func(ctx context.Context, ev engine.Event) error {
		_, err := d.Gateway.Send(ev.ChatID, helpText)
		return err
	}

	e.Register("help", engine.Guard{Kind: engine.KindMessage, Label: state.LabelAny, Command: "ayuda"}, fn)
	e.Register("help-alias", engine.Guard{Kind: engine.KindMessage, Label: state.LabelAny, Command: "help"}, fn)
}

// registerCancel обрабатывает /cancelar и кнопку «Cancelar». Сначала
// закрывается персональный диалог нажавшего, иначе — диалог чата: так
// студент не может оборвать чужой сценарий в группе. Диалог чата,
// запомнивший инициатора, отменяет только сам инициатор.
func registerCancel(e *engine.Engine, d Deps) {
	cancel := func(ctx context.Context, ev engine.Event) error {
		uid := ev.UserIdentity()
		cid := ev.ChatIdentity()

		cleared := false
		if _, ok := d.States.Get(uid); ok {
			d.States.Clear(uid)
			cleared = true
		} else if _, ok := d.States.Get(cid); ok {
			if owner, has := d.States.Data(cid)[keyOwnerTgID].(int64); has && owner != ev.UserID {
				_, err := d.Gateway.Send(ev.ChatID, "Solo quien inició la operación puede cancelarla.")
				return err
			}
			d.States.Clear(cid)
			cleared = true
		}

		if !cleared {
			_, err := d.Gateway.Send(ev.ChatID, "No hay ninguna operación en curso.")
			return err
		}

		if ev.Kind == engine.KindCallback {
			return d.Gateway.Edit(ev.ChatID, ev.MessageID, "❌ Operación cancelada.")
		}
		_, err := d.Gateway.Send(ev.ChatID, "❌ Operación cancelada.")
		return err
	}

	e.Register("cancel-command", engine.Guard{Kind: engine.KindMessage, Label: state.LabelAny, Command: "cancelar"}, cancel)
	e.Register("cancel-button", engine.Guard{Kind: engine.KindCallback, Label: state.LabelAny, Prefix: telegram.DataCancel}, cancel)
}
