package models

import "time"

// Purpose представляет назначение комнаты
type Purpose string

const (
	PurposeAnnouncements Purpose = "anuncios"
	PurposeGroup         Purpose = "grupal"
	PurposeIndividual    Purpose = "individual"
)

// ParsePurpose возвращает Purpose по строковому значению
func ParsePurpose(s string) (Purpose, bool) {
	switch Purpose(s) {
	case PurposeAnnouncements, PurposeGroup, PurposeIndividual:
		return Purpose(s), true
	}
	return "", false
}

// Room представляет комнату тьюторий, привязанную к группе Telegram
type Room struct {
	ID         int64     `db:"id"`
	TgChatID   int64     `db:"tg_chat_id"`
	OwnerID    int64     `db:"owner_id"`
	Name       string    `db:"name"`
	SubjectID  *int64    `db:"subject_id"`
	Purpose    Purpose   `db:"purpose"`
	InviteLink string    `db:"invite_link"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// RoomDraft накапливает данные мастера создания комнаты до единственной
// записи в БД в конце диалога
type RoomDraft struct {
	OwnerID    int64
	TgChatID   int64
	Name       string
	SubjectID  *int64
	Purpose    Purpose
	InviteLink string
}

// Member представляет участника комнаты
type Member struct {
	UserID    int64     `db:"user_id"`
	TgUserID  int64     `db:"tg_user_id"`
	FirstName string    `db:"first_name"`
	JoinedAt  time.Time `db:"joined_at"`
}

// roomNameBlacklist — символы, запрещённые в названии комнаты
const roomNameBlacklist = "<>\"'`/\\;&"

// ValidRoomName проверяет, что название непустое и не содержит
// запрещённых символов
func ValidRoomName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		for _, bad := range roomNameBlacklist {
			if r == bad {
				return false
			}
		}
	}
	return true
}
