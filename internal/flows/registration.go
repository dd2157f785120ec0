package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"tutoriasBot/internal/domain/models"
	"tutoriasBot/internal/engine"
	"tutoriasBot/internal/pkg/logger/sl"
	"tutoriasBot/internal/repository"
	"tutoriasBot/internal/state"
	"tutoriasBot/internal/telegram"
)

var emailLocalPart = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+$`)

// Registration — сценарий регистрации с подтверждением институтской почты:
// (нет) → awaiting_email → awaiting_verification_token →
// awaiting_carrera_selection → (запись в БД, состояние очищено).
type Registration struct {
	d   Deps
	rnd *rand.Rand
}

func NewRegistration(d Deps) *Registration {
	return &Registration{
		d:   d,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *Registration) register(e *engine.Engine) {
	e.Register("registration-start",
		engine.Guard{Kind: engine.KindMessage, Label: state.LabelAny, Command: "start"},
		f.handleStart)

	e.Register("registration-email",
		engine.Guard{Kind: engine.KindMessage, Label: StateAwaitingEmail, Match: notCommand},
		f.handleEmail)

	e.Register("registration-code",
		engine.Guard{Kind: engine.KindMessage, Label: StateAwaitingCode, Match: notCommand},
		f.handleCode)

	e.Register("registration-carrera",
		engine.Guard{Kind: engine.KindCallback, Label: StateAwaitingCarrera, Prefix: telegram.PrefixCarrera},
		f.handleCarrera)
}

// handleStart начинает (или перезапускает) регистрацию
func (f *Registration) handleStart(ctx context.Context, ev engine.Event) error {
	if ev.ChatID != ev.UserID {
		_, err := f.d.Gateway.Send(ev.ChatID, "Escríbeme por privado para registrarte 🙂")
		return err
	}

	id := ev.ChatIdentity()

	if f.d.Lockouts.Locked(id) {
		mins := int(f.d.Lockouts.Remaining(id).Minutes()) + 1
		_, err := f.d.Gateway.Send(ev.ChatID,
			fmt.Sprintf("🚫 Demasiados intentos fallidos. Inténtalo de nuevo en %d minutos.", mins))
		return err
	}

	if _, err := f.d.Service.UserByTgID(ctx, ev.UserID); err == nil {
		f.d.States.Clear(id)
		_, err := f.d.Gateway.Send(ev.ChatID, "Ya estás registrado/a. Usa /ayuda para ver las opciones.")
		return err
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		_, sendErr := f.d.Gateway.Send(ev.ChatID, genericError)
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	// /start сбрасывает любой незавершённый диалог этого чата
	f.d.States.Clear(id)
	data := f.d.States.Data(id)
	data[keyFirstName] = ev.FirstName
	f.d.States.Set(id, StateAwaitingEmail)

	_, err := f.d.Gateway.Send(ev.ChatID, fmt.Sprintf(
		"👋 ¡Bienvenido/a al bot de tutorías!\n\nEnvíame tu correo institucional (@%s) para empezar.",
		f.d.Cfg.EmailDomain))
	return err
}

// handleEmail проверяет почту и высылает код подтверждения
func (f *Registration) handleEmail(ctx context.Context, ev engine.Event) error {
	id := ev.ChatIdentity()
	email := strings.ToLower(strings.TrimSpace(ev.Text))

	if !f.validEmail(email) {
		_, err := f.d.Gateway.Send(ev.ChatID, fmt.Sprintf(
			"Ese correo no es válido. Debe ser tu correo institucional @%s.", f.d.Cfg.EmailDomain))
		return err
	}

	if _, err := f.d.Service.UserByEmail(ctx, email); err == nil {
		f.d.States.Clear(id)
		_, err := f.d.Gateway.Send(ev.ChatID, "Ese correo ya está registrado.")
		return err
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		_, sendErr := f.d.Gateway.Send(ev.ChatID, genericError)
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	code := f.newCode()
	subject := "Código de verificación — bot de tutorías"
	body := fmt.Sprintf("Tu código de verificación es: %s\n\nCaduca en %d minutos.",
		code, int(f.d.Cfg.CodeTTL.Minutes()))

	if err := f.d.Mailer.Send(ctx, email, subject, body); err != nil {
		// Состояние не меняем: следующий ввод почты повторит попытку
		f.d.Log.Error("failed to send verification email", sl.Err(err))
		_, sendErr := f.d.Gateway.Send(ev.ChatID,
			"No se pudo enviar el correo de verificación. Vuelve a enviar tu dirección para reintentarlo.")
		return sendErr
	}

	data := f.d.States.Data(id)
	data[keyEmail] = email
	data[keyCode] = code
	data[keyCodeExpires] = f.d.Now().Add(f.d.Cfg.CodeTTL)
	data[keyAttempts] = 0
	f.d.States.Set(id, StateAwaitingCode)

	_, err := f.d.Gateway.Send(ev.ChatID, fmt.Sprintf(
		"📬 Te hemos enviado un código de 6 dígitos a %s. Escríbelo aquí (caduca en %d minutos).",
		email, int(f.d.Cfg.CodeTTL.Minutes())))
	return err
}

// handleCode сверяет код: просроченный код отклоняется даже если совпадает;
// после MaxCodeAttempts неверных вводов регистрация блокируется.
func (f *Registration) handleCode(ctx context.Context, ev engine.Event) error {
	id := ev.ChatIdentity()
	data := f.d.States.Data(id)

	code, _ := data[keyCode].(string)
	expires, _ := data[keyCodeExpires].(time.Time)

	if f.d.Now().After(expires) {
		f.d.States.Clear(id)
		_, err := f.d.Gateway.Send(ev.ChatID,
			"⏰ El código ha caducado. Usa /start para volver a intentarlo.")
		return err
	}

	if strings.TrimSpace(ev.Text) != code {
		attempts, _ := data[keyAttempts].(int)
		attempts++
		data[keyAttempts] = attempts

		if attempts >= f.d.Cfg.MaxCodeAttempts {
			f.d.Lockouts.Lock(id, f.d.Cfg.LockoutDuration)
			f.d.States.Clear(id)
			f.d.Log.Warn("registration locked out", slog.Int64("tg_user_id", ev.UserID))
			_, err := f.d.Gateway.Send(ev.ChatID, fmt.Sprintf(
				"🚫 Demasiados códigos incorrectos. El registro queda bloqueado durante %d minutos.",
				int(f.d.Cfg.LockoutDuration.Minutes())))
			return err
		}

		f.d.States.Set(id, StateAwaitingCode) // освежаем отметку времени
		_, err := f.d.Gateway.Send(ev.ChatID, fmt.Sprintf(
			"Código incorrecto. Te quedan %d intentos.", f.d.Cfg.MaxCodeAttempts-attempts))
		return err
	}

	carreras, err := f.d.Service.Carreras(ctx)
	if err != nil {
		// Состояние не меняем: повторный ввод кода попробует ещё раз
		_, sendErr := f.d.Gateway.Send(ev.ChatID, genericError)
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	f.d.States.Set(id, StateAwaitingCarrera)
	_, err = f.d.Gateway.SendKeyboard(ev.ChatID,
		"✅ Código correcto. Elige tu titulación:", telegram.CarrerasKeyboard(carreras))
	return err
}

// handleCarrera завершает регистрацию единственной записью в БД
func (f *Registration) handleCarrera(ctx context.Context, ev engine.Event) error {
	choice, ok := ev.Callback.(telegram.CarreraChoice)
	if !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)

	email, _ := data[keyEmail].(string)
	firstName, _ := data[keyFirstName].(string)
	if firstName == "" {
		firstName = ev.FirstName
	}

	user := models.User{
		TgUserID:  ev.UserID,
		Email:     email,
		FirstName: firstName,
		Role:      models.RoleStudent,
		CarreraID: choice.ID,
	}

	if _, err := f.d.Service.RegisterUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			f.d.States.Clear(id)
			return f.d.Gateway.Edit(ev.ChatID, ev.MessageID, "Ya estás registrado/a.")
		}
		// Состояние не меняем: повторное нажатие повторит запись
		editErr := f.d.Gateway.Edit(ev.ChatID, ev.MessageID,
			"No se pudo completar el registro. Vuelve a elegir tu titulación para reintentarlo.")
		if editErr != nil {
			return editErr
		}
		return err
	}

	f.d.States.Clear(id)
	return f.d.Gateway.Edit(ev.ChatID, ev.MessageID,
		"🎓 ¡Registro completado! Usa /ayuda para ver lo que puedo hacer.")
}

// validEmail проверяет формат и институтский домен
func (f *Registration) validEmail(email string) bool {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" {
		return false
	}
	return domain == f.d.Cfg.EmailDomain && emailLocalPart.MatchString(local)
}

// newCode генерирует 6-значный код подтверждения
func (f *Registration) newCode() string {
	return fmt.Sprintf("%06d", f.rnd.Intn(900000)+100000)
}

const genericError = "Ha ocurrido un error. Inténtalo de nuevo más tarde."
