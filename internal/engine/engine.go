// Package engine маршрутизирует входящие события бота к обработчикам
// диалоговых сценариев.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"tutoriasBot/internal/state"
)

// Kind представляет вид входящего события
type Kind int

const (
	KindMessage Kind = iota
	KindCallback
	KindPromotion
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindCallback:
		return "callback"
	case KindPromotion:
		return "promotion"
	default:
		return "unknown"
	}
}

// Promotion несёт данные события «бот назначен администратором группы»
type Promotion struct {
	PromotedBy  int64
	ChatTitle   string
	CanInvite   bool
	CanRestrict bool
}

// Event — единица доставки: одно сообщение, один callback или одно
// служебное событие чата.
type Event struct {
	Kind       Kind
	ChatID     int64
	UserID     int64
	FirstName  string
	Text       string
	Command    string // имя команды без "/", пусто для остальных сообщений
	MessageID  int
	CallbackID string
	Callback   any // типизированный callback, декодированный до диспетчеризации
	Promotion  *Promotion
}

// ChatIdentity возвращает идентичность диалога в пространстве чатов
func (e Event) ChatIdentity() state.Identity {
	return state.ChatIdentity(e.ChatID)
}

// UserIdentity возвращает идентичность диалога в пространстве пользователей
func (e Event) UserIdentity() state.Identity {
	return state.UserIdentity(e.UserID)
}

// Guard — предикат применимости обработчика. Пустые поля означают
// «не проверять». Label сравнивается с текущей меткой диалога в заданном
// пространстве; state.LabelAny пропускает любую метку, пустая метка
// требует отсутствия записи.
type Guard struct {
	Kind    Kind
	Space   state.Space
	Label   state.Label
	Command string
	Prefix  string
	Match   func(Event) bool
}

// HandlerFunc выполняет один шаг диалога
type HandlerFunc func(ctx context.Context, ev Event) error

type handler struct {
	guard Guard
	fn    HandlerFunc
	name  string
}

// Middleware вызывается для каждого события до диспетчеризации и не
// участвует в решении о совпадении.
type Middleware func(ev Event)

// Engine подбирает для события первый (и по соглашению — единственный)
// подходящий обработчик. События одного чата обрабатываются строго
// по одному за раз.
type Engine struct {
	log      *slog.Logger
	states   *state.Store
	handlers []handler
	mws      []Middleware

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New(log *slog.Logger, states *state.Store) *Engine {
	return &Engine{
		log:    log,
		states: states,
		locks:  make(map[int64]*sync.Mutex),
	}
}

// Use добавляет middleware, выполняемое перед диспетчеризацией
func (e *Engine) Use(mw Middleware) {
	e.mws = append(e.mws, mw)
}

// Register добавляет обработчик. Порядок регистрации определяет порядок
// проверки гардов.
func (e *Engine) Register(name string, guard Guard, fn HandlerFunc) {
	e.handlers = append(e.handlers, handler{guard: guard, fn: fn, name: name})
}

// Dispatch доставляет событие единственному подходящему обработчику.
// Событие без совпадений молча отбрасывается. Паника в обработчике не
// роняет процесс и не затрагивает чужие диалоги.
func (e *Engine) Dispatch(ctx context.Context, ev Event) {
	for _, mw := range e.mws {
		mw(ev)
	}

	lock := e.chatLock(ev.ChatID)
	lock.Lock()
	defer lock.Unlock()

	for _, h := range e.handlers {
		if !e.matches(h.guard, ev) {
			continue
		}

		if err := e.invoke(ctx, h, ev); err != nil {
			e.log.Error("handler failed",
				slog.String("handler", h.name),
				slog.Int64("chat_id", ev.ChatID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	e.log.Debug("event matched no handler",
		slog.String("kind", ev.Kind.String()),
		slog.Int64("chat_id", ev.ChatID),
	)
}

func (e *Engine) invoke(ctx context.Context, h handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("handler panicked",
				slog.String("handler", h.name),
				slog.Any("panic", r),
			)
		}
	}()

	return h.fn(ctx, ev)
}

// matches проверяет гард против события. Паникующий пользовательский
// предикат логируется и считается несовпавшим; проверка остальных гардов
// продолжается.
func (e *Engine) matches(g Guard, ev Event) bool {
	if g.Kind != ev.Kind {
		return false
	}

	if g.Command != "" && g.Command != ev.Command {
		return false
	}

	if g.Prefix != "" && !strings.HasPrefix(ev.Text, g.Prefix) {
		return false
	}

	if g.Label != state.LabelAny {
		label, _ := e.states.Get(e.identity(g.Space, ev))
		if label != g.Label {
			return false
		}
	}

	if g.Match != nil && !e.safeMatch(g.Match, ev) {
		return false
	}

	return true
}

func (e *Engine) safeMatch(match func(Event) bool, ev Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("guard predicate panicked", slog.Any("panic", r))
			ok = false
		}
	}()

	return match(ev)
}

func (e *Engine) identity(space state.Space, ev Event) state.Identity {
	if space == state.SpaceUser {
		return ev.UserIdentity()
	}
	return ev.ChatIdentity()
}

// chatLock возвращает мьютекс чата, создавая его при первом обращении
func (e *Engine) chatLock(chatID int64) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	lock, ok := e.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[chatID] = lock
	}
	return lock
}
