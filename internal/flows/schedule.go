package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tutoriasBot/internal/domain/models"
	"tutoriasBot/internal/engine"
	"tutoriasBot/internal/pkg/logger/sl"
	"tutoriasBot/internal/repository"
	"tutoriasBot/internal/state"
	"tutoriasBot/internal/telegram"
)

// ScheduleEditor — редактор недельного расписания тьютора:
// (нет) → selecting_day → managing_slots ⇄ entering_slot; «Guardar»
// сериализует черновик и пишет его в БД, оставаясь в managing_slots.
type ScheduleEditor struct {
	d Deps
}

func NewScheduleEditor(d Deps) *ScheduleEditor {
	return &ScheduleEditor{d: d}
}

func (f *ScheduleEditor) register(e *engine.Engine) {
	e.Register("schedule-start",
		engine.Guard{Kind: engine.KindMessage, Label: state.LabelAny, Command: "configurar_horario"},
		f.handleStart)

	e.Register("schedule-day",
		engine.Guard{Kind: engine.KindCallback, Label: StateSelectingDay, Prefix: telegram.PrefixDay},
		f.handleDay)

	e.Register("schedule-slot-add",
		engine.Guard{Kind: engine.KindCallback, Label: StateManagingSlots, Prefix: telegram.DataSlotAdd},
		f.handleSlotAdd)

	e.Register("schedule-slot-modify",
		engine.Guard{Kind: engine.KindCallback, Label: StateManagingSlots, Prefix: telegram.PrefixSlotModify},
		f.handleSlotModify)

	e.Register("schedule-slot-delete",
		engine.Guard{Kind: engine.KindCallback, Label: StateManagingSlots, Prefix: telegram.PrefixSlotDelete},
		f.handleSlotDelete)

	e.Register("schedule-save",
		engine.Guard{Kind: engine.KindCallback, Label: StateManagingSlots, Prefix: telegram.DataSlotSave},
		f.handleSave)

	e.Register("schedule-back",
		engine.Guard{Kind: engine.KindCallback, Label: StateManagingSlots, Prefix: telegram.DataSlotBack},
		f.handleBack)

	e.Register("schedule-interval",
		engine.Guard{Kind: engine.KindMessage, Label: StateEnteringSlot, Match: notCommand},
		f.handleInterval)
}

func (f *ScheduleEditor) handleStart(ctx context.Context, ev engine.Event) error {
	if ev.ChatID != ev.UserID {
		_, err := f.d.Gateway.Send(ev.ChatID, "Configura tu horario escribiéndome por privado.")
		return err
	}

	user, err := f.d.Service.UserByTgID(ctx, ev.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		_, err := f.d.Gateway.Send(ev.ChatID, "Primero debes registrarte con /start.")
		return err
	} else if err != nil {
		_, sendErr := f.d.Gateway.Send(ev.ChatID, genericError)
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	if !user.IsTutor() {
		_, err := f.d.Gateway.Send(ev.ChatID, "Solo los tutores pueden configurar un horario.")
		return err
	}

	serialized, err := f.d.Service.Schedule(ctx, user.ID)
	if err != nil {
		_, sendErr := f.d.Gateway.Send(ev.ChatID, genericError)
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	draft, err := models.ParseSchedule(serialized)
	if err != nil {
		f.d.Log.Warn("stored schedule unparseable, starting empty", sl.Err(err))
		draft = make(models.WeekSchedule)
	}

	id := ev.ChatIdentity()
	f.d.States.Clear(id)
	data := f.d.States.Data(id)
	data[keyDraft] = draft
	data[keyTutorID] = user.ID
	f.d.States.Set(id, StateSelectingDay)

	_, err = f.d.Gateway.SendKeyboard(ev.ChatID, "🗓 Elige un día para editar:", telegram.DaysKeyboard())
	return err
}

func (f *ScheduleEditor) handleDay(ctx context.Context, ev engine.Event) error {
	sel, ok := ev.Callback.(telegram.DaySelect)
	if !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	data[keyDay] = sel.Day
	f.d.States.Set(id, StateManagingSlots)

	return f.renderSlots(ev, data)
}

func (f *ScheduleEditor) handleSlotAdd(ctx context.Context, ev engine.Event) error {
	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	data[keyEditIndex] = -1
	f.d.States.Set(id, StateEnteringSlot)

	_, err := f.d.Gateway.Send(ev.ChatID, "Envía el intervalo con el formato HH:MM-HH:MM (por ejemplo, 09:00-11:30).")
	return err
}

func (f *ScheduleEditor) handleSlotModify(ctx context.Context, ev engine.Event) error {
	mod, ok := ev.Callback.(telegram.SlotModify)
	if !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	draft, day := f.draftAndDay(data)

	if mod.Index < 0 || mod.Index >= len(draft[day]) {
		return f.renderSlots(ev, data)
	}

	data[keyEditIndex] = mod.Index
	f.d.States.Set(id, StateEnteringSlot)

	_, err := f.d.Gateway.Send(ev.ChatID, fmt.Sprintf(
		"Envía el nuevo intervalo para sustituir %s (formato HH:MM-HH:MM).", draft[day][mod.Index]))
	return err
}

// handleSlotDelete удаляет интервал; последний интервал дня удаляет
// и сам день из черновика.
func (f *ScheduleEditor) handleSlotDelete(ctx context.Context, ev engine.Event) error {
	del, ok := ev.Callback.(telegram.SlotDelete)
	if !ok {
		return nil
	}

	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	draft, day := f.draftAndDay(data)

	intervals := draft[day]
	if del.Index < 0 || del.Index >= len(intervals) {
		return f.renderSlots(ev, data)
	}

	intervals = append(intervals[:del.Index], intervals[del.Index+1:]...)
	if len(intervals) == 0 {
		delete(draft, day)
	} else {
		draft[day] = intervals
	}

	f.d.States.Set(id, StateManagingSlots)
	return f.renderSlots(ev, data)
}

// handleSave сериализует черновик и сохраняет. Повторное сохранение
// неизменённого черновика даёт ту же строку и не является ошибкой.
func (f *ScheduleEditor) handleSave(ctx context.Context, ev engine.Event) error {
	data := f.d.States.Data(ev.ChatIdentity())
	draft, _ := f.draftAndDay(data)
	tutorID, _ := data[keyTutorID].(int64)

	if err := f.d.Service.SaveSchedule(ctx, tutorID, draft.Serialize()); err != nil {
		// Состояние не меняем: повторное нажатие повторит сохранение
		_, sendErr := f.d.Gateway.Send(ev.ChatID, "No se pudo guardar el horario. Inténtalo de nuevo.")
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	f.d.States.Set(ev.ChatIdentity(), StateManagingSlots)
	_, err := f.d.Gateway.Send(ev.ChatID, "💾 Horario guardado.")
	return err
}

func (f *ScheduleEditor) handleBack(ctx context.Context, ev engine.Event) error {
	f.d.States.Set(ev.ChatIdentity(), StateSelectingDay)
	return f.d.Gateway.EditKeyboard(ev.ChatID, ev.MessageID, "🗓 Elige un día para editar:", telegram.DaysKeyboard())
}

// handleInterval захватывает один интервал свободным текстом
func (f *ScheduleEditor) handleInterval(ctx context.Context, ev engine.Event) error {
	id := ev.ChatIdentity()
	data := f.d.States.Data(id)
	draft, day := f.draftAndDay(data)

	iv, err := models.ParseInterval(ev.Text)
	if err != nil {
		// Остаёмся в entering_slot, просто просим ещё раз
		_, sendErr := f.d.Gateway.Send(ev.ChatID,
			"Intervalo no válido. Usa el formato HH:MM-HH:MM y asegúrate de que el inicio sea anterior al fin.")
		return sendErr
	}

	editIndex, _ := data[keyEditIndex].(int)
	if editIndex >= 0 && editIndex < len(draft[day]) {
		draft[day][editIndex] = iv
	} else {
		draft[day] = append(draft[day], iv)
	}

	f.d.States.Set(id, StateManagingSlots)

	text := f.slotsText(day, draft[day])
	_, err = f.d.Gateway.SendKeyboard(ev.ChatID, text, telegram.SlotsKeyboard(draft[day]))
	return err
}

// renderSlots перерисовывает меню интервалов выбранного дня прямо в
// сообщении с кнопками — без синтезирования фальшивых событий.
func (f *ScheduleEditor) renderSlots(ev engine.Event, data map[string]any) error {
	draft, day := f.draftAndDay(data)
	return f.d.Gateway.EditKeyboard(ev.ChatID, ev.MessageID, f.slotsText(day, draft[day]), telegram.SlotsKeyboard(draft[day]))
}

func (f *ScheduleEditor) slotsText(day models.Weekday, intervals []models.Interval) string {
	if len(intervals) == 0 {
		return fmt.Sprintf("📅 <b>%s</b>\n\nSin intervalos todavía.", day)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>%s</b>\n\n", day)
	for i, iv := range intervals {
		fmt.Fprintf(&b, "%d. %s\n", i+1, iv)
	}
	return b.String()
}

func (f *ScheduleEditor) draftAndDay(data map[string]any) (models.WeekSchedule, models.Weekday) {
	draft, _ := data[keyDraft].(models.WeekSchedule)
	if draft == nil {
		draft = make(models.WeekSchedule)
		data[keyDraft] = draft
	}
	day, _ := data[keyDay].(models.Weekday)
	return draft, day
}
