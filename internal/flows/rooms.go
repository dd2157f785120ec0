package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"tutoriasBot/internal/domain/models"
	"tutoriasBot/internal/engine"
	"tutoriasBot/internal/pkg/logger/sl"
	"tutoriasBot/internal/repository"
	"tutoriasBot/internal/state"
	"tutoriasBot/internal/telegram"
)

// Rooms — жизненный цикл комнат: мастер создания (запускается событием
// «бот стал администратором группы»), смена назначения и двухшаговое
// удаление с одноразовым nonce против устаревших подтверждений.
type Rooms struct {
	d Deps
}

func NewRooms(d Deps) *Rooms {
	return &Rooms{d: d}
}

func (f *Rooms) register(e *engine.Engine) {
	e.Register("room-promotion",
		engine.Guard{Kind: engine.KindPromotion, Label: state.LabelAny},
		f.handlePromotion)

	e.Register("room-name",
		engine.Guard{Kind: engine.KindMessage, Label: StateAwaitingRoomName, Match: notCommand},
		f.handleName)

	e.Register("room-subject",
		engine.Guard{Kind: engine.KindCallback, Label: StateAwaitingSubject, Prefix: telegram.PrefixSubject},
		f.handleSubject)

	e.Register("room-purpose",
		engine.Guard{Kind: engine.KindCallback, Label: StateAwaitingPurpose, Prefix: telegram.PrefixPurpose},
		f.handlePurpose)

	e.Register("room-change-purpose",
		engine.Guard{Kind: engine.KindMessage, Label: state.LabelAny, Command: "cambiar_proposito"},
		f.handleChangePurpose)

	e.Register("room-new-purpose",
		engine.Guard{Kind: engine.KindCallback, Label: StateChoosingNewPurpose, Prefix: telegram.PrefixPurpose},
		f.handleNewPurpose)

	e.Register("room-disposition",
		engine.Guard{Kind: engine.KindCallback, Label: StateAwaitingDisposition, Prefix: "disp_"},
		f.handleDisposition)

	e.Register("room-delete",
		engine.Guard{Kind: engine.KindMessage, Label: state.LabelAny, Command: "eliminar_sala"},
		f.handleDelete)

	e.Register("room-delete-confirm",
		engine.Guard{Kind: engine.KindCallback, Label: StateAwaitingDeleteConfirm, Prefix: telegram.PrefixDeleteConf},
		f.handleDeleteConfirm)
}

// handlePromotion — триггер мастера создания. Сценарий не стартует, если
// продвинувший бота не тьютор, группа уже привязана или боту не хватает
// прав приглашать и исключать участников.
func (f *Rooms) handlePromotion(ctx context.Context, ev engine.Event) error {
	p := ev.Promotion
	if p == nil {
		return nil
	}

	user, err := f.d.Service.UserByTgID(ctx, p.PromotedBy)
	if errors.Is(err, repository.ErrUserNotFound) || (err == nil && !user.IsTutor()) {
		_, err := f.d.Gateway.Send(ev.ChatID, "Solo un tutor registrado puede crear una sala de tutorías.")
		return err
	} else if err != nil {
		return err
	}

	if _, err := f.d.Service.RoomByTgChatID(ctx, ev.ChatID); err == nil {
		_, err := f.d.Gateway.Send(ev.ChatID, "Este grupo ya tiene una sala registrada.")
		return err
	} else if !errors.Is(err, repository.ErrRoomNotFound) {
		return err
	}

	if !p.CanInvite || !p.CanRestrict {
		_, err := f.d.Gateway.Send(ev.ChatID,
			"No puedo crear la sala: necesito permisos para invitar mediante enlace y para expulsar miembros. Concédemelos y vuelve a nombrarme administrador.")
		return err
	}

	link, err := f.d.Gateway.InviteLink(ev.ChatID)
	if err != nil {
		f.d.Log.Error("failed to create invite link", sl.Err(err))
		_, sendErr := f.d.Gateway.Send(ev.ChatID, genericError)
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	id := ev.ChatIdentity()
	f.d.States.Clear(id)

	draft := &models.RoomDraft{
		OwnerID:    user.ID,
		TgChatID:   ev.ChatID,
		InviteLink: link,
		Name:       strings.TrimSpace(p.ChatTitle),
	}
	data := f.d.States.Data(id)
	data[keyRoomDraft] = draft
	data[keyOwnerTgID] = p.PromotedBy

	// Если имя уже известно из события — сразу к выбору асигнатуры
	if models.ValidRoomName(draft.Name) {
		return f.askSubject(ctx, ev, id)
	}

	draft.Name = ""
	f.d.States.Set(id, StateAwaitingRoomName)
	_, err = f.d.Gateway.Send(ev.ChatID,
		"¿Cómo se va a llamar la sala? (sin los caracteres <>\"'`/\\;&)")
	return err
}

func (f *Rooms) handleName(ctx context.Context, ev engine.Event) error {
	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	draft, _ := data[keyRoomDraft].(*models.RoomDraft)
	if draft == nil {
		f.d.States.Clear(id)
		return nil
	}

	name := strings.TrimSpace(ev.Text)
	if !models.ValidRoomName(name) {
		_, err := f.d.Gateway.Send(ev.ChatID,
			"Ese nombre no es válido. Evita los caracteres <>\"'`/\\;& y no lo dejes vacío.")
		return err
	}

	draft.Name = name
	return f.askSubject(ctx, ev, id)
}

func (f *Rooms) askSubject(ctx context.Context, ev engine.Event, id state.Identity) error {
	subjects, err := f.d.Service.Subjects(ctx)
	if err != nil {
		_, sendErr := f.d.Gateway.Send(ev.ChatID, genericError)
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	f.d.States.Set(id, StateAwaitingSubject)
	_, err = f.d.Gateway.SendKeyboard(ev.ChatID,
		"¿A qué asignatura pertenece la sala?", telegram.SubjectsKeyboard(subjects))
	return err
}

func (f *Rooms) handleSubject(ctx context.Context, ev engine.Event) error {
	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	draft, _ := data[keyRoomDraft].(*models.RoomDraft)
	if draft == nil {
		f.d.States.Clear(id)
		return nil
	}

	switch cb := ev.Callback.(type) {
	case telegram.SubjectChoice:
		subjectID := cb.ID
		draft.SubjectID = &subjectID
	case telegram.SubjectSkip:
		draft.SubjectID = nil
	default:
		return nil
	}

	f.d.States.Set(id, StateAwaitingPurpose)
	return f.d.Gateway.EditKeyboard(ev.ChatID, ev.MessageID,
		"¿Cuál es el propósito de la sala?", telegram.PurposeKeyboard())
}

// handlePurpose завершает мастер: комната и членство владельца пишутся
// одной транзакцией.
func (f *Rooms) handlePurpose(ctx context.Context, ev engine.Event) error {
	choice, ok := ev.Callback.(telegram.PurposeChoice)
	if !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	draft, _ := data[keyRoomDraft].(*models.RoomDraft)
	if draft == nil {
		f.d.States.Clear(id)
		return nil
	}

	draft.Purpose = choice.Purpose

	if _, err := f.d.Service.CreateRoom(ctx, *draft); err != nil {
		if errors.Is(err, repository.ErrRoomAlreadyExists) {
			f.d.States.Clear(id)
			return f.d.Gateway.Edit(ev.ChatID, ev.MessageID, "Este grupo ya tiene una sala registrada.")
		}
		// Состояние не меняем: повторный выбор повторит запись
		editErr := f.d.Gateway.Edit(ev.ChatID, ev.MessageID,
			"No se pudo crear la sala. Vuelve a elegir el propósito para reintentarlo.")
		if editErr != nil {
			return editErr
		}
		return err
	}

	f.d.States.Clear(id)
	return f.d.Gateway.Edit(ev.ChatID, ev.MessageID, fmt.Sprintf(
		"✅ Sala «%s» creada.\n\nEnlace de invitación: %s", draft.Name, draft.InviteLink))
}

// ownedRoom возвращает комнату группы, если команду дал её владелец
func (f *Rooms) ownedRoom(ctx context.Context, ev engine.Event) (*models.Room, error) {
	room, err := f.d.Service.RoomByTgChatID(ctx, ev.ChatID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		_, sendErr := f.d.Gateway.Send(ev.ChatID, "Este grupo no tiene ninguna sala registrada.")
		return nil, sendErr
	} else if err != nil {
		return nil, err
	}

	user, err := f.d.Service.UserByTgID(ctx, ev.UserID)
	if err != nil || user.ID != room.OwnerID {
		_, sendErr := f.d.Gateway.Send(ev.ChatID, "Solo el tutor propietario de la sala puede hacer eso.")
		return nil, sendErr
	}

	return room, nil
}

func (f *Rooms) handleChangePurpose(ctx context.Context, ev engine.Event) error {
	room, err := f.ownedRoom(ctx, ev)
	if room == nil {
		return err
	}

	id := ev.ChatIdentity()
	f.d.States.Clear(id)
	data := f.d.States.Data(id)
	data[keyRoomID] = room.ID
	data[keyOwnerTgID] = ev.UserID
	f.d.States.Set(id, StateChoosingNewPurpose)

	_, err = f.d.Gateway.SendKeyboard(ev.ChatID,
		fmt.Sprintf("La sala «%s» es ahora de tipo «%s». Elige el nuevo propósito:", room.Name, room.Purpose),
		telegram.PurposeKeyboard())
	return err
}

// handleNewPurpose: без активных участников изменение фиксируется сразу;
// иначе запись откладывается до выбора судьбы участников.
func (f *Rooms) handleNewPurpose(ctx context.Context, ev engine.Event) error {
	choice, ok := ev.Callback.(telegram.PurposeChoice)
	if !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	roomID, _ := data[keyRoomID].(int64)

	students, err := f.roomStudents(ctx, ev.ChatID, roomID)
	if err != nil {
		editErr := f.d.Gateway.Edit(ev.ChatID, ev.MessageID, genericError)
		if editErr != nil {
			return editErr
		}
		return err
	}

	if len(students) == 0 {
		if err := f.d.Service.UpdateRoomPurpose(ctx, roomID, choice.Purpose); err != nil {
			editErr := f.d.Gateway.Edit(ev.ChatID, ev.MessageID, genericError)
			if editErr != nil {
				return editErr
			}
			return err
		}
		f.d.States.Clear(id)
		return f.d.Gateway.Edit(ev.ChatID, ev.MessageID,
			fmt.Sprintf("✅ Propósito actualizado a «%s».", choice.Purpose))
	}

	data[keyNewPurpose] = choice.Purpose
	f.d.States.Set(id, StateAwaitingDisposition)
	return f.d.Gateway.EditKeyboard(ev.ChatID, ev.MessageID,
		fmt.Sprintf("La sala tiene %d miembros. ¿Qué hacemos con ellos?", len(students)),
		telegram.DispositionKeyboard())
}

// roomStudents возвращает участников комнаты без владельца
func (f *Rooms) roomStudents(ctx context.Context, tgChatID, roomID int64) ([]models.Member, error) {
	room, err := f.d.Service.RoomByTgChatID(ctx, tgChatID)
	if err != nil {
		return nil, err
	}

	members, err := f.d.Service.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}

	students := make([]models.Member, 0, len(members))
	for _, m := range members {
		if m.UserID != room.OwnerID {
			students = append(students, m)
		}
	}
	return students, nil
}

// handleDisposition — именно выбор судьбы участников, а не сам propósito,
// открывает запись в БД.
func (f *Rooms) handleDisposition(ctx context.Context, ev engine.Event) error {
	disp, ok := ev.Callback.(telegram.Disposition)
	if !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	roomID, _ := data[keyRoomID].(int64)
	purpose, _ := data[keyNewPurpose].(models.Purpose)

	room, err := f.d.Service.RoomByTgChatID(ctx, ev.ChatID)
	if err != nil {
		editErr := f.d.Gateway.Edit(ev.ChatID, ev.MessageID, genericError)
		if editErr != nil {
			return editErr
		}
		return err
	}

	students, err := f.roomStudents(ctx, ev.ChatID, roomID)
	if err != nil {
		editErr := f.d.Gateway.Edit(ev.ChatID, ev.MessageID, genericError)
		if editErr != nil {
			return editErr
		}
		return err
	}

	if err := f.d.Service.UpdateRoomPurpose(ctx, roomID, purpose); err != nil {
		// Состояние не меняем: повторное нажатие повторит запись
		editErr := f.d.Gateway.Edit(ev.ChatID, ev.MessageID, genericError)
		if editErr != nil {
			return editErr
		}
		return err
	}

	if disp.Keep {
		for _, m := range students {
			if _, err := f.d.Gateway.Send(m.TgUserID, fmt.Sprintf(
				"ℹ️ La sala «%s» ha pasado a ser de tipo «%s».", room.Name, purpose)); err != nil {
				f.d.Log.Warn("failed to notify member",
					slog.Int64("tg_user_id", m.TgUserID), sl.Err(err))
			}
		}
	} else {
		for _, m := range students {
			if err := f.d.Gateway.Ban(ev.ChatID, m.TgUserID, f.d.Now().Add(f.d.Cfg.BanDuration)); err != nil {
				f.d.Log.Warn("failed to evict member",
					slog.Int64("tg_user_id", m.TgUserID), sl.Err(err))
				continue
			}
			if err := f.d.Service.RemoveMember(ctx, roomID, m.UserID); err != nil {
				f.d.Log.Warn("failed to remove membership", sl.Err(err))
			}
		}
	}

	f.d.States.Clear(id)
	return f.d.Gateway.Edit(ev.ChatID, ev.MessageID,
		fmt.Sprintf("✅ Propósito actualizado a «%s».", purpose))
}

// handleDelete предлагает удаление; подтверждение несёт идентификаторы
// комнаты и чата плюс nonce, чтобы не сработать на устаревшем сообщении.
// Предыдущая клавиатура подтверждения, если была, убирается из чата.
func (f *Rooms) handleDelete(ctx context.Context, ev engine.Event) error {
	room, err := f.ownedRoom(ctx, ev)
	if room == nil {
		return err
	}

	nonce := uuid.NewString()

	id := ev.ChatIdentity()
	if promptID, ok := f.d.States.Data(id)[keyPromptMsgID].(int); ok {
		if err := f.d.Gateway.Delete(ev.ChatID, promptID); err != nil {
			f.d.Log.Warn("failed to delete stale confirmation", sl.Err(err))
		}
	}
	f.d.States.Clear(id)
	data := f.d.States.Data(id)
	data[keyRoomID] = room.ID
	data[keyTgChatID] = ev.ChatID
	data[keyNonce] = nonce
	data[keyOwnerTgID] = ev.UserID
	f.d.States.Set(id, StateAwaitingDeleteConfirm)

	msgID, err := f.d.Gateway.SendKeyboard(ev.ChatID, fmt.Sprintf(
		"⚠️ ¿Eliminar la sala «%s»? Se borrarán sus miembros registrados. Esta acción no se puede deshacer.", room.Name),
		telegram.DeleteConfirmKeyboard(room.ID, ev.ChatID, nonce))
	if err != nil {
		return err
	}
	data[keyPromptMsgID] = msgID
	return nil
}

func (f *Rooms) handleDeleteConfirm(ctx context.Context, ev engine.Event) error {
	confirm, ok := ev.Callback.(telegram.DeleteConfirm)
	if !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	roomID, _ := data[keyRoomID].(int64)
	tgChatID, _ := data[keyTgChatID].(int64)
	nonce, _ := data[keyNonce].(string)

	if confirm.RoomID != roomID || confirm.TgChatID != tgChatID || confirm.Nonce != nonce {
		f.d.States.Clear(id)
		return f.d.Gateway.Edit(ev.ChatID, ev.MessageID,
			"Esta confirmación ya no es válida. Vuelve a ejecutar /eliminar_sala.")
	}

	if err := f.d.Service.DeleteRoom(ctx, roomID); err != nil {
		// Состояние не меняем: повторное подтверждение повторит удаление
		editErr := f.d.Gateway.Edit(ev.ChatID, ev.MessageID, genericError)
		if editErr != nil {
			return editErr
		}
		return err
	}

	f.d.States.Clear(id)
	return f.d.Gateway.Edit(ev.ChatID, ev.MessageID, "🗑 Sala eliminada.")
}
