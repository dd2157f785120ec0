package state

import (
	"testing"
	"time"
)

func TestStoreSpacesDoNotCollide(t *testing.T) {
	s := NewStore()

	chat := ChatIdentity(42)
	user := UserIdentity(42)

	s.Set(chat, "awaiting_email")
	s.Set(user, "choosing_score")

	if label, _ := s.Get(chat); label != "awaiting_email" {
		t.Errorf("chat label = %q, want awaiting_email", label)
	}
	if label, _ := s.Get(user); label != "choosing_score" {
		t.Errorf("user label = %q, want choosing_score", label)
	}

	s.Clear(chat)

	if _, ok := s.Get(chat); ok {
		t.Error("chat entry should be gone after Clear")
	}
	if _, ok := s.Get(user); !ok {
		t.Error("user entry must survive clearing the chat entry")
	}
}

func TestStoreSingleLabelPerIdentity(t *testing.T) {
	s := NewStore()
	id := ChatIdentity(1)

	s.Set(id, "selecting_day")
	s.Set(id, "managing_slots")

	label, ok := s.Get(id)
	if !ok {
		t.Fatal("entry should exist")
	}
	if label != "managing_slots" {
		t.Errorf("label = %q, want managing_slots", label)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStoreDataSurvivesSet(t *testing.T) {
	s := NewStore()
	id := ChatIdentity(7)

	data := s.Data(id)
	data["email"] = "ana@correo.ugr.es"
	s.Set(id, "awaiting_verification_token")

	got := s.Data(id)
	if got["email"] != "ana@correo.ugr.es" {
		t.Errorf(`data["email"] = %v, want accumulated value`, got["email"])
	}
}

func TestStoreClearDropsData(t *testing.T) {
	s := NewStore()
	id := ChatIdentity(7)

	s.Data(id)["draft"] = "x"
	s.Set(id, "entering_slot")
	s.Clear(id)

	if _, ok := s.Get(id); ok {
		t.Fatal("entry should be gone")
	}
	if v := s.Data(id)["draft"]; v != nil {
		t.Errorf("data should start empty after Clear, got %v", v)
	}
}

func TestStoreSweep(t *testing.T) {
	s := NewStore()
	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	stale := ChatIdentity(1)
	fresh := ChatIdentity(2)

	s.Set(stale, "awaiting_email")

	current = current.Add(45 * time.Minute)
	s.Set(fresh, "selecting_day")

	current = current.Add(30 * time.Minute)
	evicted := s.Sweep(time.Hour)

	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if _, ok := s.Get(stale); ok {
		t.Error("stale entry should be evicted")
	}
	if _, ok := s.Get(fresh); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

// Активность продлевает жизнь диалога: Set освежает отметку времени.
func TestStoreSweepTouchedEntrySurvives(t *testing.T) {
	s := NewStore()
	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	id := ChatIdentity(9)
	s.Set(id, "awaiting_email")

	current = current.Add(50 * time.Minute)
	s.Set(id, "awaiting_verification_token")

	current = current.Add(50 * time.Minute)
	if evicted := s.Sweep(time.Hour); evicted != 0 {
		t.Fatalf("evicted = %d, want 0", evicted)
	}

	label, ok := s.Get(id)
	if !ok || label != "awaiting_verification_token" {
		t.Errorf("entry should survive, got label=%q ok=%v", label, ok)
	}
}

func TestLockouts(t *testing.T) {
	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewLockoutsWithClock(func() time.Time { return current })

	id := ChatIdentity(5)

	if l.Locked(id) {
		t.Fatal("fresh identity should not be locked")
	}

	l.Lock(id, 30*time.Minute)

	if !l.Locked(id) {
		t.Fatal("identity should be locked")
	}
	if got := l.Remaining(id); got != 30*time.Minute {
		t.Errorf("Remaining = %v, want 30m", got)
	}

	current = current.Add(31 * time.Minute)

	if l.Locked(id) {
		t.Error("lockout should expire")
	}
	if got := l.Remaining(id); got != 0 {
		t.Errorf("Remaining after expiry = %v, want 0", got)
	}
}

// Блокировка живёт в отдельном реестре и переживает вычистку диалогов
func TestLockoutSurvivesStoreSweep(t *testing.T) {
	s := NewStore()
	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }
	l := NewLockoutsWithClock(func() time.Time { return current })

	id := ChatIdentity(3)
	s.Set(id, "awaiting_verification_token")
	l.Lock(id, 2*time.Hour)

	current = current.Add(90 * time.Minute)
	if evicted := s.Sweep(time.Hour); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}

	if !l.Locked(id) {
		t.Error("lockout must outlive the conversation entry")
	}
}
