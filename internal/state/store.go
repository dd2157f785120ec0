// Package state хранит состояния диалогов бота в памяти процесса.
// Состояния не переживают рестарт — это осознанное решение.
package state

import (
	"sync"
	"time"
)

// Space представляет пространство идентификаторов диалога. Состояния
// групповых сценариев ключуются по чату, персональных (например, ввод
// комментария к оценке) — по пользователю. Пространства не пересекаются.
type Space string

const (
	SpaceChat Space = "chat"
	SpaceUser Space = "user"
)

// Identity — ключ, под которым отслеживается один активный диалог
type Identity struct {
	Space Space
	ID    int64
}

func ChatIdentity(chatID int64) Identity {
	return Identity{Space: SpaceChat, ID: chatID}
}

func UserIdentity(userID int64) Identity {
	return Identity{Space: SpaceUser, ID: userID}
}

// Label представляет текущий шаг диалога
type Label string

// LabelAny в гарде движка означает «любое состояние, включая отсутствующее»
const LabelAny Label = "*"

type entry struct {
	label       Label
	data        map[string]any
	lastTouched time.Time
}

// Store — единственная разделяемая изменяемая структура ядра.
// У каждого Identity не более одной активной записи; отсутствие записи
// означает «диалог не идёт», а не «диалог в начальном состоянии».
type Store struct {
	mu      sync.Mutex
	entries map[Identity]*entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[Identity]*entry),
		now:     time.Now,
	}
}

// Get возвращает текущую метку диалога, если запись существует
func (s *Store) Get(id Identity) (Label, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return "", false
	}
	return e.label, true
}

// Data возвращает аккумулятор диалога, создавая пустой при первом
// обращении. Обработчики одного Identity сериализованы движком, поэтому
// возврат живой мапы безопасен.
func (s *Store) Data(id Identity) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = &entry{data: make(map[string]any), lastTouched: s.now()}
		s.entries[id] = e
	}
	return e.data
}

// Set устанавливает метку и обновляет lastTouched. Предыдущая метка
// перезаписывается, история не ведётся.
func (s *Store) Set(id Identity, label Label) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = &entry{data: make(map[string]any)}
		s.entries[id] = e
	}
	e.label = label
	e.lastTouched = s.now()
}

// Clear полностью удаляет запись: метку, аккумулятор и отметку времени
func (s *Store) Clear(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
}

// Sweep удаляет записи, к которым не прикасались дольше ttl, и возвращает
// количество удалённых. Пользователь об этом не уведомляется.
func (s *Store) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	evicted := 0
	for id, e := range s.entries {
		if e.lastTouched.Before(cutoff) {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}

// Len возвращает число активных диалогов
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
