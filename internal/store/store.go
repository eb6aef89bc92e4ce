package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// Store - канонический in-memory набор сущностей.
// Единственный писатель - координатор мутаций, все остальные только читают.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]model.Entity
	loading   bool
	lastErr   string
	version   uint64
	listeners []func()
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Store {
	return &Store{
		entities: make(map[string]model.Entity),
		logger:   logger,
	}
}

// SetAll полностью заменяет коллекцию и сбрасывает ошибку
func (s *Store) SetAll(items []model.Entity) {
	s.mu.Lock()
	m := make(map[string]model.Entity, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		m[it.ID] = it.Clone()
	}
	s.entities = m
	s.lastErr = ""
	s.bump()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Upsert(item model.Entity) {
	if item.ID == "" {
		s.logger.Warn("upsert skipped: empty id")
		return
	}
	s.mu.Lock()
	s.entities[item.ID] = item.Clone()
	s.bump()
	s.mu.Unlock()
	s.notify()
}

// Patch сливает дельту в существующую сущность; отсутствующий id - no-op
func (s *Store) Patch(id string, partial model.Patch) {
	s.mu.Lock()
	current, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("patch skipped: id not in collection", zap.String("id", id))
		return
	}
	s.entities[id] = partial.Apply(current)
	s.bump()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	if _, ok := s.entities[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entities, id)
	s.bump()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.bump()
	s.mu.Unlock()
	s.notify()
}

// SetError выставляет ошибку уровня коллекции; пустая строка очищает
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.bump()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Get(id string) (model.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return model.Entity{}, false
	}
	return e.Clone(), true
}

// Snapshot возвращает копию всей коллекции
func (s *Store) Snapshot() map[string]model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Entity, len(s.entities))
	for id, e := range s.entities {
		out[id] = e.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Version растет на каждой мутации; view-движок использует ее для мемоизации
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe регистрирует слушателя, вызываемого после каждой мутации.
// Слушатель не должен обращаться к Store синхронно с блокировкой записи.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) bump() {
	s.version++
}

func (s *Store) notify() {
	s.mu.RLock()
	ls := s.listeners
	s.mu.RUnlock()
	for _, fn := range ls {
		fn()
	}
}
