package flows

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"tutoriasBot/internal/domain/models"
	"tutoriasBot/internal/state"
	"tutoriasBot/internal/telegram"
)

const groupChat int64 = -100500

func TestRoomCreationFromChatTitle(t *testing.T) {
	e, _ := tutorEnv(t)
	id := state.ChatIdentity(groupChat)

	e.promotion(groupChat, 20, "Tutorías de Álgebra", true, true)
	e.wantLabel(id, StateAwaitingSubject)

	e.callback(groupChat, 20, "asig_1")
	e.wantLabel(id, StateAwaitingPurpose)

	e.callback(groupChat, 20, "prop_grupal")
	e.wantNoState(id)

	room, err := e.svc.RoomByTgChatID(context.Background(), groupChat)
	if err != nil {
		t.Fatalf("room not persisted: %v", err)
	}
	if room.Name != "Tutorías de Álgebra" || room.Purpose != models.PurposeGroup {
		t.Errorf("room = %+v", room)
	}
	if room.SubjectID == nil || *room.SubjectID != 1 {
		t.Errorf("subject = %v, want 1", room.SubjectID)
	}
}

// Непригодное название группы запрашивается отдельно
func TestRoomCreationAsksForName(t *testing.T) {
	e, _ := tutorEnv(t)
	id := state.ChatIdentity(groupChat)

	e.promotion(groupChat, 20, "", true, true)
	e.wantLabel(id, StateAwaitingRoomName)

	e.message(groupChat, 20, "mala<sala>")
	e.wantLabel(id, StateAwaitingRoomName)

	e.message(groupChat, 20, "Sala de Cálculo")
	e.wantLabel(id, StateAwaitingSubject)
}

func TestRoomCreationSkipSubject(t *testing.T) {
	e, _ := tutorEnv(t)

	e.promotion(groupChat, 20, "Sala", true, true)
	e.callback(groupChat, 20, "asig_omitir")
	e.callback(groupChat, 20, "prop_anuncios")

	room, err := e.svc.RoomByTgChatID(context.Background(), groupChat)
	if err != nil {
		t.Fatalf("room not persisted: %v", err)
	}
	if room.SubjectID != nil {
		t.Errorf("subject = %v, want nil", room.SubjectID)
	}
}

func TestRoomCreationRequiresTutor(t *testing.T) {
	e := newEnv(t)
	e.addUser(30, "est@correo.ugr.es", models.RoleStudent)

	e.promotion(groupChat, 30, "Sala", true, true)

	e.wantNoState(state.ChatIdentity(groupChat))
	if !strings.Contains(e.gw.lastText(), "tutor") {
		t.Errorf("got %q", e.gw.lastText())
	}
}

// Без прав приглашать и исключать мастер не стартует
func TestRoomCreationRequiresBothCapabilities(t *testing.T) {
	e, _ := tutorEnv(t)

	e.promotion(groupChat, 20, "Sala", true, false)
	e.wantNoState(state.ChatIdentity(groupChat))
	if !strings.Contains(e.gw.lastText(), "permisos") {
		t.Errorf("got %q", e.gw.lastText())
	}

	e.promotion(groupChat, 20, "Sala", false, true)
	e.wantNoState(state.ChatIdentity(groupChat))
}

func TestRoomCreationRejectsSecondRoom(t *testing.T) {
	e, tutor := tutorEnv(t)
	e.addRoom(groupChat, tutor)

	e.promotion(groupChat, 20, "Sala", true, true)

	e.wantNoState(state.ChatIdentity(groupChat))
	if !strings.Contains(e.gw.lastText(), "ya tiene una sala") {
		t.Errorf("got %q", e.gw.lastText())
	}
}

// Без студентов смена назначения фиксируется сразу
func TestChangePurposeNoStudents(t *testing.T) {
	e, tutor := tutorEnv(t)
	room := e.addRoom(groupChat, tutor)

	e.message(groupChat, 20, "/cambiar_proposito")
	e.wantLabel(state.ChatIdentity(groupChat), StateChoosingNewPurpose)

	e.callback(groupChat, 20, "prop_individual")

	e.wantNoState(state.ChatIdentity(groupChat))
	if room.Purpose != models.PurposeIndividual {
		t.Errorf("purpose = %q, want individual", room.Purpose)
	}
}

// Смена назначения с сохранением участников: каждому студенту уходит
// личное уведомление, из группы никто не исключается
func TestChangePurposeKeepMembersNotifies(t *testing.T) {
	e, tutor := tutorEnv(t)
	room := e.addRoom(groupChat, tutor)
	for i, tg := range []int64{31, 32, 33} {
		u := e.addUser(tg, "e"+strings.Repeat("x", i+1)+"@correo.ugr.es", models.RoleStudent)
		e.addMember(room, u)
	}

	e.message(groupChat, 20, "/cambiar_proposito")
	e.callback(groupChat, 20, "prop_anuncios")
	e.wantLabel(state.ChatIdentity(groupChat), StateAwaitingDisposition)

	e.callback(groupChat, 20, "disp_mantener")

	e.wantNoState(state.ChatIdentity(groupChat))
	if room.Purpose != models.PurposeAnnouncements {
		t.Errorf("purpose = %q", room.Purpose)
	}

	notified := 0
	for _, entry := range e.actions.entries {
		for _, tg := range []string{"send 31 ", "send 32 ", "send 33 "} {
			if strings.HasPrefix(entry, tg) && strings.Contains(entry, "anuncios") {
				notified++
			}
		}
		if strings.HasPrefix(entry, "ban ") {
			t.Errorf("nobody should be banned when keeping members: %q", entry)
		}
	}
	if notified != 3 {
		t.Errorf("notified %d students, want 3", notified)
	}
}

func TestChangePurposeEvictMembers(t *testing.T) {
	e, tutor := tutorEnv(t)
	room := e.addRoom(groupChat, tutor)
	st := e.addUser(31, "est@correo.ugr.es", models.RoleStudent)
	e.addMember(room, st)

	e.message(groupChat, 20, "/cambiar_proposito")
	e.callback(groupChat, 20, "prop_individual")
	e.callback(groupChat, 20, "disp_expulsar")

	banned := false
	for _, entry := range e.actions.entries {
		if entry == "ban -100500 31" {
			banned = true
		}
		if entry == "ban -100500 20" {
			t.Error("owner must not be banned")
		}
	}
	if !banned {
		t.Error("student should be banned on evict disposition")
	}
	if len(e.svc.members[room.ID]) != 1 {
		t.Errorf("members after evict = %d, want 1 (owner)", len(e.svc.members[room.ID]))
	}
}

func TestChangePurposeOwnerOnly(t *testing.T) {
	e, tutor := tutorEnv(t)
	e.addRoom(groupChat, tutor)
	e.addUser(31, "est@correo.ugr.es", models.RoleStudent)

	e.message(groupChat, 31, "/cambiar_proposito")

	e.wantNoState(state.ChatIdentity(groupChat))
	if !strings.Contains(e.gw.lastText(), "propietario") {
		t.Errorf("got %q", e.gw.lastText())
	}
}

func TestDeleteRoomTwoStep(t *testing.T) {
	e, tutor := tutorEnv(t)
	room := e.addRoom(groupChat, tutor)
	id := state.ChatIdentity(groupChat)

	e.message(groupChat, 20, "/eliminar_sala")
	e.wantLabel(id, StateAwaitingDeleteConfirm)

	nonce, _ := e.states.Data(id)[keyNonce].(string)
	if nonce == "" {
		t.Fatal("nonce should be stored")
	}

	e.callback(groupChat, 20, telegram.EncodeDeleteConfirm(room.ID, groupChat, nonce))

	e.wantNoState(id)
	if _, err := e.svc.RoomByTgChatID(context.Background(), groupChat); err == nil {
		t.Error("room should be deleted")
	}
}

// Подтверждение от предыдущего предложения удаления не срабатывает
func TestDeleteRoomStaleNonceRejected(t *testing.T) {
	e, tutor := tutorEnv(t)
	room := e.addRoom(groupChat, tutor)
	id := state.ChatIdentity(groupChat)

	e.message(groupChat, 20, "/eliminar_sala")
	staleNonce, _ := e.states.Data(id)[keyNonce].(string)

	// Повторная команда выдаёт новый nonce
	e.message(groupChat, 20, "/eliminar_sala")

	e.callback(groupChat, 20, telegram.EncodeDeleteConfirm(room.ID, groupChat, staleNonce))

	if _, err := e.svc.RoomByTgChatID(context.Background(), groupChat); err != nil {
		t.Error("room must survive a stale confirmation")
	}
	if !strings.Contains(e.gw.lastText(), "ya no es válida") {
		t.Errorf("got %q", e.gw.lastText())
	}
}

// Повторный /eliminar_sala убирает из чата предыдущую клавиатуру
// подтверждения
func TestDeleteRoomRerunRemovesOldKeyboard(t *testing.T) {
	e, tutor := tutorEnv(t)
	e.addRoom(groupChat, tutor)
	id := state.ChatIdentity(groupChat)

	e.message(groupChat, 20, "/eliminar_sala")
	promptID, _ := e.states.Data(id)[keyPromptMsgID].(int)
	if promptID == 0 {
		t.Fatal("prompt message id should be stored")
	}

	e.message(groupChat, 20, "/eliminar_sala")

	deleted := false
	for _, entry := range e.actions.entries {
		if entry == fmt.Sprintf("delete %d %d", groupChat, promptID) {
			deleted = true
		}
	}
	if !deleted {
		t.Error("old confirmation keyboard should be deleted")
	}
	e.wantLabel(id, StateAwaitingDeleteConfirm)
}

// Чужой /cancelar не обрывает сценарий, запомнивший инициатора
func TestCancelByOtherMemberKeepsDeletion(t *testing.T) {
	e, tutor := tutorEnv(t)
	e.addRoom(groupChat, tutor)
	e.addUser(31, "est@correo.ugr.es", models.RoleStudent)
	id := state.ChatIdentity(groupChat)

	e.message(groupChat, 20, "/eliminar_sala")
	e.message(groupChat, 31, "/cancelar")

	e.wantLabel(id, StateAwaitingDeleteConfirm)
	if !strings.Contains(e.gw.lastText(), "quien inició") {
		t.Errorf("got %q", e.gw.lastText())
	}

	e.message(groupChat, 20, "/cancelar")
	e.wantNoState(id)
}

func TestCancelAbortsRoomDeletion(t *testing.T) {
	e, tutor := tutorEnv(t)
	e.addRoom(groupChat, tutor)
	id := state.ChatIdentity(groupChat)

	e.message(groupChat, 20, "/eliminar_sala")
	e.callback(groupChat, 20, "cancelar")

	e.wantNoState(id)
	if _, err := e.svc.RoomByTgChatID(context.Background(), groupChat); err != nil {
		t.Error("room must survive a cancelled deletion")
	}
}
