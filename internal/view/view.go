package view

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/store"
)

// Compute - чистая проекция: фильтр (AND всех активных предикатов) + устойчивая
// сортировка. Коллекцию не мутирует.
func Compute(entities map[string]model.Entity, filter model.FilterState, sortState model.SortState) []model.Entity {
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		if matches(e, filter) {
			out = append(out, e)
		}
	}
	sortEntities(out, sortState)
	return out
}

func matches(e model.Entity, f model.FilterState) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(f.Search)) {
		return false
	}
	if len(f.Statuses) > 0 && !statusIn(e.Status, f.Statuses) {
		return false
	}
	if len(f.Assignees) > 0 {
		if e.AssigneeID == nil || !stringIn(*e.AssigneeID, f.Assignees) {
			return false
		}
	}
	if len(f.Projects) > 0 && !stringIn(e.ProjectID, f.Projects) {
		return false
	}
	// Все требуемые теги должны присутствовать
	for _, tag := range f.Tags {
		if !stringIn(tag, e.Tags) {
			return false
		}
	}
	if f.DueFrom != nil {
		if e.DueDate == nil || e.DueDate.Before(*f.DueFrom) {
			return false
		}
	}
	if f.DueTo != nil {
		if e.DueDate == nil || e.DueDate.After(*f.DueTo) {
			return false
		}
	}
	return true
}

// sortEntities сортирует детерминированно:
// 1. Выбранное поле в выбранном направлении
// 2. ID лексикографически по возрастанию при равенстве
func sortEntities(items []model.Entity, s model.SortState) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if s.Descending {
			a, b = b, a
		}
		if c := compareByField(a, b, s.Field); c != 0 {
			return c < 0
		}
		return items[i].ID < items[j].ID
	})
}

func compareByField(a, b model.Entity, field model.SortField) int {
	switch field {
	case model.SortByTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case model.SortByStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case model.SortByPriority:
		return a.Priority - b.Priority
	case model.SortByDueDate:
		return compareTimePtr(a.DueDate, b.DueDate)
	case model.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default: // created_at
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// nil-даты считаются большими любых ненулевых
func compareTimePtr(a, b *time.Time) int {
	if (a == nil) != (b == nil) {
		if a == nil {
			return 1
		}
		return -1
	}
	if a == nil {
		return 0
	}
	return a.Compare(*b)
}

// Engine мемоизирует последнюю проекцию: пока версия стора и состояние
// фильтра/сортировки не изменились, возвращается тот же самый слайс.
type Engine struct {
	mu         sync.Mutex
	store      *store.Store
	haveCached bool
	version    uint64
	filter     model.FilterState
	sort       model.SortState
	cached     []model.Entity
}

func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

func (e *Engine) View(filter model.FilterState, sortState model.SortState) []model.Entity {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.store.Version()
	if e.haveCached && v == e.version && filter.Equal(e.filter) && sortState == e.sort {
		return e.cached
	}

	result := Compute(e.store.Snapshot(), filter, sortState)
	e.haveCached = true
	e.version = v
	e.filter = filter
	e.sort = sortState
	e.cached = result
	return result
}

func statusIn(s model.Status, set []model.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func stringIn(s string, set []string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
