package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tutoriasBot/internal/domain/models"
	"tutoriasBot/internal/engine"
	"tutoriasBot/internal/pkg/logger/sl"
	"tutoriasBot/internal/repository"
	"tutoriasBot/internal/state"
	"tutoriasBot/internal/telegram"
)

// Rating — завершение тьюторий: тьютор выбирает, чью сессию закрыть,
// студент подтверждает выход сам. В обоих случаях студенту предлагается
// анонимная оценка. Шаги оценки живут в user-пространстве, поэтому
// несколько студентов одной комнаты оценивают независимо.
type Rating struct {
	d Deps
}

func NewRating(d Deps) *Rating {
	return &Rating{d: d}
}

func (f *Rating) register(e *engine.Engine) {
	e.Register("rating-finalize",
		engine.Guard{Kind: engine.KindMessage, Label: state.LabelAny, Command: "finalizar_tutoria"},
		f.handleFinalize)

	e.Register("rating-evict-student",
		engine.Guard{Kind: engine.KindCallback, Label: StateSelectingStudent, Prefix: telegram.PrefixEvict},
		f.handleEvictStudent)

	e.Register("rating-evict-all",
		engine.Guard{Kind: engine.KindCallback, Label: StateSelectingStudent, Prefix: telegram.DataEvictAll},
		f.handleEvictAll)

	e.Register("rating-self-exit",
		engine.Guard{Kind: engine.KindCallback, Space: state.SpaceUser, Label: StateConfirmingExit, Prefix: telegram.DataSelfExit},
		f.handleSelfExit)

	e.Register("rating-stars",
		engine.Guard{Kind: engine.KindCallback, Space: state.SpaceUser, Label: StateChoosingScore, Prefix: telegram.PrefixStars},
		f.handleStars)

	e.Register("rating-want-comment",
		engine.Guard{Kind: engine.KindCallback, Space: state.SpaceUser, Label: StateScoreChosen, Prefix: telegram.DataRateComment},
		f.handleWantComment)

	e.Register("rating-finish",
		engine.Guard{Kind: engine.KindCallback, Space: state.SpaceUser, Label: StateScoreChosen, Prefix: telegram.DataRateFinish},
		f.handleFinishNoComment)

	e.Register("rating-comment",
		engine.Guard{Kind: engine.KindMessage, Space: state.SpaceUser, Label: StateAwaitingComment, Match: notCommand},
		f.handleComment)
}

// handleFinalize разводит команду по роли: владелец комнаты выбирает
// студента, студент подтверждает собственный выход.
func (f *Rating) handleFinalize(ctx context.Context, ev engine.Event) error {
	room, err := f.d.Service.RoomByTgChatID(ctx, ev.ChatID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		_, sendErr := f.d.Gateway.Send(ev.ChatID, "Este grupo no tiene ninguna sala registrada.")
		return sendErr
	} else if err != nil {
		return err
	}

	user, err := f.d.Service.UserByTgID(ctx, ev.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		_, sendErr := f.d.Gateway.Send(ev.ChatID, "Primero regístrate con /start en un chat privado conmigo.")
		return sendErr
	} else if err != nil {
		return err
	}

	if user.ID == room.OwnerID {
		return f.startSelection(ctx, ev, room)
	}
	return f.startSelfExit(ctx, ev, room, user)
}

func (f *Rating) startSelection(ctx context.Context, ev engine.Event, room *models.Room) error {
	members, err := f.d.Service.Members(ctx, room.ID)
	if err != nil {
		return err
	}

	students := make([]models.Member, 0, len(members))
	for _, m := range members {
		if m.UserID != room.OwnerID {
			students = append(students, m)
		}
	}
	if len(students) == 0 {
		_, err := f.d.Gateway.Send(ev.ChatID, "No hay estudiantes en la sala ahora mismo.")
		return err
	}

	id := ev.ChatIdentity()
	f.d.States.Clear(id)
	data := f.d.States.Data(id)
	data[keyRoomID] = room.ID
	data[keyOwnerTgID] = ev.UserID
	f.d.States.Set(id, StateSelectingStudent)

	_, err = f.d.Gateway.SendKeyboard(ev.ChatID,
		"¿De quién finalizamos la tutoría?", telegram.StudentsKeyboard(students))
	return err
}

func (f *Rating) startSelfExit(ctx context.Context, ev engine.Event, room *models.Room, user *models.User) error {
	members, err := f.d.Service.Members(ctx, room.ID)
	if err != nil {
		return err
	}

	var member *models.Member
	for i := range members {
		if members[i].UserID == user.ID {
			member = &members[i]
			break
		}
	}
	if member == nil {
		_, err := f.d.Gateway.Send(ev.ChatID, "No figuras como miembro de esta sala.")
		return err
	}

	uid := ev.UserIdentity()
	f.d.States.Clear(uid)
	data := f.d.States.Data(uid)
	data[keyRoomID] = room.ID
	data[keyTgChatID] = ev.ChatID
	data[keyMemberID] = user.ID
	data[keyPendingRemoval] = true
	f.d.States.Set(uid, StateConfirmingExit)

	_, err = f.d.Gateway.SendKeyboard(ev.ChatID,
		fmt.Sprintf("%s, ¿das por terminada tu tutoría?", ev.FirstName), telegram.SelfExitKeyboard())
	return err
}

func (f *Rating) handleEvictStudent(ctx context.Context, ev engine.Event) error {
	cb, ok := ev.Callback.(telegram.EvictStudent)
	if !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	roomID, _ := data[keyRoomID].(int64)
	ownerTg, _ := data[keyOwnerTgID].(int64)
	if ev.UserID != ownerTg {
		return nil
	}

	members, err := f.d.Service.Members(ctx, roomID)
	if err != nil {
		return err
	}

	var target *models.Member
	for i := range members {
		if members[i].TgUserID == cb.TgUserID {
			target = &members[i]
			break
		}
	}
	if target == nil {
		f.d.States.Clear(id)
		return f.d.Gateway.Edit(ev.ChatID, ev.MessageID, "Ese estudiante ya no está en la sala.")
	}

	if err := f.evict(ctx, ev.ChatID, roomID, *target); err != nil {
		editErr := f.d.Gateway.Edit(ev.ChatID, ev.MessageID, genericError)
		if editErr != nil {
			return editErr
		}
		return err
	}

	f.d.States.Clear(id)
	return f.d.Gateway.Edit(ev.ChatID, ev.MessageID,
		fmt.Sprintf("✅ Tutoría de %s finalizada.", target.FirstName))
}

func (f *Rating) handleEvictAll(ctx context.Context, ev engine.Event) error {
	if _, ok := ev.Callback.(telegram.EvictAll); !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	roomID, _ := data[keyRoomID].(int64)
	ownerTg, _ := data[keyOwnerTgID].(int64)
	if ev.UserID != ownerTg {
		return nil
	}

	members, err := f.d.Service.Members(ctx, roomID)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range members {
		if m.TgUserID == ownerTg {
			continue
		}
		if err := f.evict(ctx, ev.ChatID, roomID, m); err != nil {
			f.d.Log.Warn("failed to evict student",
				slog.Int64("tg_user_id", m.TgUserID), sl.Err(err))
			continue
		}
		count++
	}

	f.d.States.Clear(id)
	return f.d.Gateway.Edit(ev.ChatID, ev.MessageID,
		fmt.Sprintf("✅ Tutorías finalizadas: %d.", count))
}

// evict исключает студента из группы (мягкий бан с возвратом), снимает
// членство и предлагает ему оценку в личном чате. Личный чат может быть
// недоступен, если студент никогда не писал боту — это не ошибка.
func (f *Rating) evict(ctx context.Context, tgChatID, roomID int64, m models.Member) error {
	if err := f.d.Gateway.Ban(tgChatID, m.TgUserID, f.d.Now().Add(f.d.Cfg.BanDuration)); err != nil {
		return err
	}
	if err := f.d.Service.RemoveMember(ctx, roomID, m.UserID); err != nil {
		f.d.Log.Warn("failed to remove membership", sl.Err(err))
	}

	uid := state.UserIdentity(m.TgUserID)
	f.d.States.Clear(uid)
	data := f.d.States.Data(uid)
	data[keyRoomID] = roomID
	data[keyPendingRemoval] = false
	f.d.States.Set(uid, StateChoosingScore)

	if _, err := f.d.Gateway.SendKeyboard(m.TgUserID,
		"Tu tutoría ha terminado. ¿Cómo la valorarías? La valoración es anónima.",
		telegram.StarsKeyboard()); err != nil {
		f.d.Log.Warn("failed to send rating prompt",
			slog.Int64("tg_user_id", m.TgUserID), sl.Err(err))
		f.d.States.Clear(uid)
	}
	return nil
}

func (f *Rating) handleSelfExit(ctx context.Context, ev engine.Event) error {
	if _, ok := ev.Callback.(telegram.SelfExit); !ok {
		return nil
	}

	uid := ev.UserIdentity()
	f.d.States.Set(uid, StateChoosingScore)
	return f.d.Gateway.EditKeyboard(ev.ChatID, ev.MessageID,
		"Antes de salir, valora la tutoría. La valoración es anónima.", telegram.StarsKeyboard())
}

func (f *Rating) handleStars(ctx context.Context, ev engine.Event) error {
	cb, ok := ev.Callback.(telegram.RateStars)
	if !ok {
		return nil
	}
	if !models.ValidStars(cb.Stars) {
		return nil
	}

	uid := ev.UserIdentity()
	data := f.d.States.Data(uid)
	data[keyStars] = cb.Stars
	f.d.States.Set(uid, StateScoreChosen)

	return f.d.Gateway.EditKeyboard(ev.ChatID, ev.MessageID,
		fmt.Sprintf("Has elegido %d ⭐. ¿Quieres añadir un comentario?", cb.Stars),
		telegram.RatingNextKeyboard())
}

func (f *Rating) handleWantComment(ctx context.Context, ev engine.Event) error {
	uid := ev.UserIdentity()
	f.d.States.Set(uid, StateAwaitingComment)
	return f.d.Gateway.Edit(ev.ChatID, ev.MessageID, "Escribe tu comentario:")
}

func (f *Rating) handleFinishNoComment(ctx context.Context, ev engine.Event) error {
	return f.finishRating(ctx, ev, "", true)
}

func (f *Rating) handleComment(ctx context.Context, ev engine.Event) error {
	return f.finishRating(ctx, ev, strings.TrimSpace(ev.Text), false)
}

// finishRating сохраняет оценку и только потом, при подтверждённом
// выходе, исключает студента из группы. Порядок принципиален: даже если
// Telegram откажет в бане, оценка уже записана. И наоборот: ошибка
// записи оценки не отменяет выход, студент явно его подтвердил.
func (f *Rating) finishRating(ctx context.Context, ev engine.Event, comment string, viaCallback bool) error {
	uid := ev.UserIdentity()
	data := f.d.States.Data(uid)
	roomID, _ := data[keyRoomID].(int64)
	stars, _ := data[keyStars].(int)
	pendingRemoval, _ := data[keyPendingRemoval].(bool)
	tgChatID, _ := data[keyTgChatID].(int64)
	memberID, _ := data[keyMemberID].(int64)

	saveErr := f.d.Service.SaveRating(ctx, &models.Rating{
		RoomID:  roomID,
		Stars:   stars,
		Comment: comment,
	})
	if saveErr != nil {
		f.d.Log.Error("failed to save rating", slog.Int64("room_id", roomID), sl.Err(saveErr))
	}

	if pendingRemoval {
		if err := f.d.Gateway.Ban(tgChatID, ev.UserID, f.d.Now().Add(f.d.Cfg.BanDuration)); err != nil {
			f.d.Log.Warn("failed to ban on self-exit", sl.Err(err))
		} else if err := f.d.Service.RemoveMember(ctx, roomID, memberID); err != nil {
			f.d.Log.Warn("failed to remove membership", sl.Err(err))
		}
	}

	f.d.States.Clear(uid)

	text := "🙏 ¡Gracias por tu valoración!"
	if saveErr != nil {
		text = "No se pudo guardar tu valoración, pero la tutoría queda finalizada."
	}

	var err error
	if viaCallback {
		err = f.d.Gateway.Edit(ev.ChatID, ev.MessageID, text)
	} else {
		_, err = f.d.Gateway.Send(ev.ChatID, text)
	}
	if err != nil {
		return err
	}
	return saveErr
}
