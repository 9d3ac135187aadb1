// cinelingua-service/internal/cache/cache.go
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cinelingua-service/internal/metrics"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL используется, если New получил неположительный TTL.
const DefaultTTL = 24 * time.Hour

// entry заменяется целиком при каждой записи и никогда не изменяется на месте.
type entry struct {
	payload  []byte
	storedAt time.Time
}

// Store - кэш ключ -> payload в памяти процесса с фиксированным TTL.
// Payload хранится в закодированном виде и копируется на входе и на выходе,
// поэтому один вызывающий не может изменить то, что читает другой. Истечение
// проверяется лениво при чтении; фоновой очистки нет.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
	metrics *metrics.Metrics

	hits   atomic.Int64
	misses atomic.Int64
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет time.Now, в основном для тестов.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics отправляет попадания, промахи и обходы кэша в m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New создает пустое хранилище.
func New(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.TrackCacheEntries(func() float64 { return float64(s.Stats().Keys) })
	return s
}

// TTL возвращает настроенное время жизни записи.
func (s *Store) TTL() time.Duration { return s.ttl }

// Get возвращает копию payload по ключу. Чтение считается попаданием, только
// если запись существует и моложе TTL.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || s.now().Sub(e.storedAt) >= s.ttl {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return bytes.Clone(e.payload), true
}

// Put сохраняет копию payload по ключу, перезаписывая прежнюю запись.
func (s *Store) Put(key string, payload []byte) {
	e := entry{payload: bytes.Clone(payload), storedAt: s.now()}
	if e.payload == nil {
		e.payload = []byte{}
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// Len возвращает число записей, включая истекшие.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats - снимок счетчиков обращений.
type Stats struct {
	Hits   int64
	Misses int64
	Keys   int
}

// Stats возвращает текущие счетчики.
func (s *Store) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load(), Keys: s.Len()}
}

// Fetch возвращает закэшированное значение по ключу, а при промахе вычисляет
// и сохраняет его. С refresh чтение пропускается, значение всегда
// пересчитывается и перезаписывается. Одновременные промахи по одному ключу
// разделяют одно вычисление. Каждый вызывающий получает свою копию.
func Fetch[T any](ctx context.Context, s *Store, namespace, key string, refresh bool, compute func(context.Context) (T, error)) (T, error) {
	var out T
	if !refresh {
		if payload, ok := s.Get(key); ok {
			if err := json.Unmarshal(payload, &out); err == nil {
				s.metrics.CacheRequest(namespace, "hit")
				return out, nil
			}
		}
		s.metrics.CacheRequest(namespace, "miss")
	} else {
		s.metrics.CacheRequest(namespace, "bypass")
	}

	// Общее вычисление переживает любого отдельного вызывающего; каждый
	// перестает ждать только при отмене своего контекста.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		value, err := compute(shared)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode cache payload for %s: %w", key, err)
		}
		s.Put(key, payload)
		return payload, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return out, res.Err
	}
	if err := json.Unmarshal(res.Val.([]byte), &out); err != nil {
		return out, fmt.Errorf("failed to decode cache payload for %s: %w", key, err)
	}
	return out, nil
}

// GenerateKey строит компактный ключ кэша из имени метода и его параметров.
func GenerateKey(method string, params any) string {
	if params == nil {
		return method
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", method, params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", method, hash[:16])
}
