package flows

import (
	"strings"
	"testing"

	"tutoriasBot/internal/domain/models"
	"tutoriasBot/internal/state"
)

func tutorEnv(t *testing.T) (*env, *models.User) {
	e := newEnv(t)
	tutor := e.addUser(20, "tutor@correo.ugr.es", models.RoleTutor)
	return e, tutor
}

func TestScheduleEditorHappyPath(t *testing.T) {
	e, tutor := tutorEnv(t)
	id := state.ChatIdentity(20)

	e.message(20, 20, "/configurar_horario")
	e.wantLabel(id, StateSelectingDay)

	e.callback(20, 20, "dia_Lunes")
	e.wantLabel(id, StateManagingSlots)

	e.callback(20, 20, "slot_add")
	e.wantLabel(id, StateEnteringSlot)

	e.message(20, 20, "09:00-11:30")
	e.wantLabel(id, StateManagingSlots)

	e.callback(20, 20, "slot_save")
	e.wantLabel(id, StateManagingSlots)

	if got := e.svc.schedules[tutor.ID]; got != "Lunes: 09:00-11:30" {
		t.Errorf("persisted schedule = %q", got)
	}
}

func TestScheduleEditorOnlyTutors(t *testing.T) {
	e := newEnv(t)
	e.addUser(30, "est@correo.ugr.es", models.RoleStudent)

	e.message(30, 30, "/configurar_horario")

	e.wantNoState(state.ChatIdentity(30))
	if !strings.Contains(e.gw.lastText(), "tutores") {
		t.Errorf("got %q", e.gw.lastText())
	}
}

func TestScheduleEditorRequiresRegistration(t *testing.T) {
	e := newEnv(t)

	e.message(20, 20, "/configurar_horario")

	e.wantNoState(state.ChatIdentity(20))
	if !strings.Contains(e.gw.lastText(), "/start") {
		t.Errorf("got %q", e.gw.lastText())
	}
}

func TestScheduleEditorInvalidIntervalStays(t *testing.T) {
	e, _ := tutorEnv(t)
	id := state.ChatIdentity(20)

	e.message(20, 20, "/configurar_horario")
	e.callback(20, 20, "dia_Martes")
	e.callback(20, 20, "slot_add")

	e.message(20, 20, "25:00-26:00")
	e.wantLabel(id, StateEnteringSlot)

	e.message(20, 20, "12:30-11:00")
	e.wantLabel(id, StateEnteringSlot)

	e.message(20, 20, "10:00-11:00")
	e.wantLabel(id, StateManagingSlots)
}

// Повторное сохранение неизменённого черновика — не ошибка
func TestScheduleSaveIdempotent(t *testing.T) {
	e, tutor := tutorEnv(t)

	e.message(20, 20, "/configurar_horario")
	e.callback(20, 20, "dia_Lunes")
	e.callback(20, 20, "slot_add")
	e.message(20, 20, "09:00-11:30")

	e.callback(20, 20, "slot_save")
	first := e.svc.schedules[tutor.ID]

	e.callback(20, 20, "slot_save")
	second := e.svc.schedules[tutor.ID]

	if first != second || first != "Lunes: 09:00-11:30" {
		t.Errorf("saves differ: %q vs %q", first, second)
	}
}

// Удаление последнего интервала убирает день целиком
func TestScheduleDeleteLastIntervalRemovesDay(t *testing.T) {
	e, tutor := tutorEnv(t)
	e.svc.schedules[tutor.ID] = "Lunes: 09:00-11:30"

	e.message(20, 20, "/configurar_horario")
	e.callback(20, 20, "dia_Lunes")
	e.callback(20, 20, "slot_del_0")
	e.callback(20, 20, "slot_save")

	if got := e.svc.schedules[tutor.ID]; got != "" {
		t.Errorf("schedule after deleting last interval = %q, want empty", got)
	}
}

func TestScheduleModifyReplacesInterval(t *testing.T) {
	e, tutor := tutorEnv(t)
	e.svc.schedules[tutor.ID] = "Lunes: 09:00-11:30, 16:00-17:00"

	e.message(20, 20, "/configurar_horario")
	e.callback(20, 20, "dia_Lunes")
	e.callback(20, 20, "slot_mod_0")
	e.message(20, 20, "08:00-09:45")
	e.callback(20, 20, "slot_save")

	want := "Lunes: 08:00-09:45, 16:00-17:00"
	if got := e.svc.schedules[tutor.ID]; got != want {
		t.Errorf("schedule = %q, want %q", got, want)
	}
}

// Пересекающиеся интервалы сохраняются без возражений
func TestScheduleAllowsOverlappingIntervals(t *testing.T) {
	e, tutor := tutorEnv(t)

	e.message(20, 20, "/configurar_horario")
	e.callback(20, 20, "dia_Lunes")
	e.callback(20, 20, "slot_add")
	e.message(20, 20, "09:00-11:00")
	e.callback(20, 20, "slot_add")
	e.message(20, 20, "10:00-12:00")
	e.callback(20, 20, "slot_save")

	want := "Lunes: 09:00-11:00, 10:00-12:00"
	if got := e.svc.schedules[tutor.ID]; got != want {
		t.Errorf("schedule = %q, want %q", got, want)
	}
}

func TestScheduleBackReturnsToDaySelection(t *testing.T) {
	e, _ := tutorEnv(t)
	id := state.ChatIdentity(20)

	e.message(20, 20, "/configurar_horario")
	e.callback(20, 20, "dia_Jueves")
	e.callback(20, 20, "slot_volver")

	e.wantLabel(id, StateSelectingDay)
}

// Нечитаемое сохранённое расписание не ломает редактор: старт с пустого
func TestScheduleUnparseableStoredStartsEmpty(t *testing.T) {
	e, tutor := tutorEnv(t)
	e.svc.schedules[tutor.ID] = "basura sin formato"

	e.message(20, 20, "/configurar_horario")
	e.wantLabel(state.ChatIdentity(20), StateSelectingDay)
}
