package state

import (
	"sync"
	"time"
)

// Lockouts хранит временные блокировки регистрации после превышения числа
// неверных кодов подтверждения. Реестр намеренно живёт отдельно от Store:
// Sweep не должен снимать блокировку раньше срока.
type Lockouts struct {
	mu    sync.Mutex
	until map[Identity]time.Time
	now   func() time.Time
}

func NewLockouts() *Lockouts {
	return NewLockoutsWithClock(time.Now)
}

// NewLockoutsWithClock позволяет подменить источник времени
func NewLockoutsWithClock(now func() time.Time) *Lockouts {
	return &Lockouts{
		until: make(map[Identity]time.Time),
		now:   now,
	}
}

// Lock блокирует Identity на указанный срок
func (l *Lockouts) Lock(id Identity, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.until[id] = l.now().Add(d)
}

// Locked сообщает, действует ли блокировка. Истёкшие записи удаляются
// по пути.
func (l *Lockouts) Locked(id Identity) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	deadline, ok := l.until[id]
	if !ok {
		return false
	}
	if l.now().After(deadline) {
		delete(l.until, id)
		return false
	}
	return true
}

// Remaining возвращает остаток блокировки (ноль, если её нет)
func (l *Lockouts) Remaining(id Identity) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	deadline, ok := l.until[id]
	if !ok {
		return 0
	}
	d := deadline.Sub(l.now())
	if d < 0 {
		return 0
	}
	return d
}
