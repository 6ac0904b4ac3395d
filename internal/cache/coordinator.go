package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTTL - окно свежести по умолчанию
const DefaultTTL = 5 * time.Minute

// Entry - запись кэша в хранилище
type Entry struct {
	Payload json.RawMessage `json:"payload"`
	Params  Params          `json:"params,omitempty"`
	// FetchedAt - момент получения данных в миллисекундах unix-времени
	FetchedAt int64 `json:"timestamp"`
}

// Valid сообщает, свежая ли запись: now - FetchedAt < ttl (строго)
func (e Entry) Valid(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.FetchedAt < ttl.Milliseconds()
}

// Status - состояние области кэша
type Status int

const (
	StatusIdle Status = iota
	StatusFetching
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusReady:
		return "ready"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// State - снимок состояния одной области кэша, который отдаётся вызывающему коду
type State[T any] struct {
	Status  Status
	Data    T
	HasData bool
	// FetchedAt - время получения показываемых данных
	FetchedAt time.Time
	// Refreshing выставлен, пока идёт фоновое обновление поверх показанных данных
	Refreshing bool
	// Err - ошибка последней попытки загрузки
	Err error
}

// Request описывает одно обращение к области кэша
type Request[T any] struct {
	Scope  string
	Params Params
	Fetch  func(ctx context.Context) (T, error)
	// Navigated - пользователь только что перешёл на экран, и показанные из кэша данные нужно обновить в фоне
	Navigated bool
}

type scope[T any] struct {
	state    State[T]
	inFlight bool
	// gen растёт при каждом Invalidate; загрузка, начатая в другом поколении, в кэш не попадает
	gen uint64
}

// Coordinator координирует чтение из кэша, фоновые обновления и защиту от параллельных запросов
// одной области соответствует не более одного незавершённого запроса к источнику
type Coordinator[T any] struct {
	store Store
	ttl   time.Duration
	clock clockwork.Clock
	log   *slog.Logger

	mu     sync.Mutex
	scopes map[string]*scope[T]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option настраивает координатор
type Option func(*options)

type options struct {
	ttl   time.Duration
	clock clockwork.Clock
}

// WithTTL задаёт окно свежести
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithClock подменяет часы, нужно для тестов
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// NewCoordinator создаёт координатор поверх хранилища
func NewCoordinator[T any](store Store, log *slog.Logger, opts ...Option) *Coordinator[T] {
	o := options{ttl: DefaultTTL, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator[T]{
		store:  store,
		ttl:    o.ttl,
		clock:  o.clock,
		log:    log.With(slog.String("component", "cache_coordinator")),
		scopes: make(map[string]*scope[T]),
		ctx:    ctx,
		cancel: cancel,
	}
}

// TTL возвращает окно свежести координатора
func (c *Coordinator[T]) TTL() time.Duration {
	return c.ttl
}

// Load читает запись области из хранилища
// отсутствующая, битая или устаревшая запись возвращается как отсутствующая,
// причём битая и устаревшая заодно удаляются из хранилища
func (c *Coordinator[T]) Load(scopeKey string) (Entry, bool) {
	raw, ok := c.store.Get(scopeKey)
	if !ok {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Payload == nil {
		c.log.Debug("discarding malformed cache entry", slog.String("scope", scopeKey))
		c.drop(scopeKey)
		return Entry{}, false
	}

	if !entry.Valid(c.clock.Now(), c.ttl) {
		c.log.Debug("discarding stale cache entry", slog.String("scope", scopeKey))
		c.drop(scopeKey)
		return Entry{}, false
	}

	return entry, true
}

// GetOrFetch отдаёт данные области
//  1. если по области уже идёт запрос - ничего не делает и возвращает текущее состояние
//  2. если в кэше есть свежая запись с теми же параметрами - отдаёт её сразу,
//     а при Navigated запускает обновление в фоне
//  3. иначе блокируется на загрузке и сохраняет результат в кэш
func (c *Coordinator[T]) GetOrFetch(ctx context.Context, req Request[T]) (State[T], error) {
	log := c.log.With(slog.String("scope", req.Scope))

	c.mu.Lock()
	sc := c.scopeLocked(req.Scope)

	if sc.inFlight {
		snapshot := sc.state
		c.mu.Unlock()
		log.Debug("fetch already in flight, skipping")
		return snapshot, nil
	}

	if entry, ok := c.Load(req.Scope); ok && ParamsMatch(entry.Params, req.Params) {
		var data T
		if err := json.Unmarshal(entry.Payload, &data); err == nil {
			sc.state = State[T]{
				Status:    StatusReady,
				Data:      data,
				HasData:   true,
				FetchedAt: time.UnixMilli(entry.FetchedAt),
			}
			if req.Navigated {
				sc.inFlight = true
				sc.state.Refreshing = true
				c.wg.Add(1)
				go c.refresh(req, sc.gen)
			}
			snapshot := sc.state
			c.mu.Unlock()
			log.Debug("served from cache", slog.Bool("refreshing", snapshot.Refreshing))
			return snapshot, nil
		}
		// полезная нагрузка не подходит под тип - считаем запись битой
		c.drop(req.Scope)
	}

	// промах: блокирующая загрузка
	sc.inFlight = true
	sc.state = State[T]{Status: StatusFetching}
	gen := sc.gen
	c.mu.Unlock()

	data, err := req.Fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	sc.inFlight = false

	if sc.gen != gen {
		// область сбросили во время загрузки: данные отдаём вызывающему, но не кэшируем
		log.Debug("scope invalidated during fetch, result not cached")
		if err != nil {
			return sc.state, fmt.Errorf("cache: fetch %s: %w", req.Scope, err)
		}
		return State[T]{Status: StatusReady, Data: data, HasData: true, FetchedAt: c.clock.Now()}, nil
	}

	if err != nil {
		log.Error("failed to fetch data", slog.String("error", err.Error()))
		c.drop(req.Scope)
		sc.state = State[T]{Status: StatusIdle, Err: err}
		return sc.state, fmt.Errorf("cache: fetch %s: %w", req.Scope, err)
	}

	fetchedAt := c.persist(req.Scope, req.Params, data)
	sc.state = State[T]{
		Status:    StatusReady,
		Data:      data,
		HasData:   true,
		FetchedAt: fetchedAt,
	}
	return sc.state, nil
}

// refresh выполняет фоновое обновление области
// при ошибке последняя удачная запись остаётся на месте
func (c *Coordinator[T]) refresh(req Request[T], gen uint64) {
	defer c.wg.Done()
	log := c.log.With(slog.String("scope", req.Scope))

	data, err := req.Fetch(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	sc := c.scopeLocked(req.Scope)
	sc.inFlight = false
	sc.state.Refreshing = false

	if sc.gen != gen {
		log.Debug("scope invalidated during refresh, result dropped")
		return
	}

	if err != nil {
		log.Warn("background refresh failed, keeping cached data", slog.String("error", err.Error()))
		sc.state.Err = err
		return
	}

	fetchedAt := c.persist(req.Scope, req.Params, data)
	sc.state = State[T]{
		Status:    StatusReady,
		Data:      data,
		HasData:   true,
		FetchedAt: fetchedAt,
	}
	log.Debug("background refresh finished")
}

// State возвращает текущее состояние области без обращения к источнику
func (c *Coordinator[T]) State(scopeKey string) State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sc, ok := c.scopes[scopeKey]; ok {
		return sc.state
	}
	return State[T]{}
}

// Invalidate удаляет запись области из хранилища и сбрасывает её состояние
// идущий запрос не прерывается, но его результат уже не попадёт ни в кэш, ни в состояние
func (c *Coordinator[T]) Invalidate(scopeKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop(scopeKey)
	if sc, ok := c.scopes[scopeKey]; ok {
		sc.gen++
		sc.state = State[T]{}
	}
}

// Reset забывает состояние всех областей в памяти (например, при уходе с экрана)
// хранилище не трогается, области с идущими запросами сохраняют защиту
func (c *Coordinator[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, sc := range c.scopes {
		if sc.inFlight {
			continue
		}
		delete(c.scopes, key)
	}
}

// Wait дожидается завершения всех фоновых обновлений
func (c *Coordinator[T]) Wait() {
	c.wg.Wait()
}

// Close отменяет фоновые обновления и дожидается их завершения
func (c *Coordinator[T]) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator[T]) scopeLocked(key string) *scope[T] {
	sc, ok := c.scopes[key]
	if !ok {
		sc = &scope[T]{}
		c.scopes[key] = sc
	}
	return sc
}

func (c *Coordinator[T]) persist(scopeKey string, params Params, data T) time.Time {
	now := c.clock.Now()
	payload, err := json.Marshal(data)
	if err != nil {
		c.log.Error("failed to marshal cache payload", slog.String("scope", scopeKey), slog.String("error", err.Error()))
		return now
	}
	raw, err := json.Marshal(Entry{Payload: payload, Params: params, FetchedAt: now.UnixMilli()})
	if err != nil {
		c.log.Error("failed to marshal cache entry", slog.String("scope", scopeKey), slog.String("error", err.Error()))
		return now
	}
	if err := c.store.Set(scopeKey, raw); err != nil {
		c.log.Error("failed to write cache entry", slog.String("scope", scopeKey), slog.String("error", err.Error()))
	}
	return time.UnixMilli(now.UnixMilli())
}

func (c *Coordinator[T]) drop(scopeKey string) {
	if err := c.store.Delete(scopeKey); err != nil {
		c.log.Warn("failed to delete cache entry", slog.String("scope", scopeKey), slog.String("error", err.Error()))
	}
}
