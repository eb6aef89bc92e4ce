package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
)

const defaultPriority = 5

type EntityService struct {
	repo repo.EntityRepository
}

func NewEntityService(repo repo.EntityRepository) *EntityService {
	return &EntityService{repo: repo}
}

func (s *EntityService) Create(ctx context.Context, p model.Patch) (model.Entity, error) {
	base := model.Entity{
		Status:   model.StatusTodo,
		Priority: defaultPriority,
	}
	if p.ID != nil { // Клиент может прислать свой id, тогда оптимистичная запись совпадет по ключу
		base.ID = *p.ID
	}

	e := p.Apply(base)
	e = stampCompletion(model.Entity{}, e, p)
	if err := s.validate(e); err != nil {
		return e, err
	}
	return s.repo.Create(ctx, e)
}

func (s *EntityService) Get(ctx context.Context, id string) (model.Entity, error) {
	return s.repo.Get(ctx, id)
}

func (s *EntityService) List(ctx context.Context, filter model.FilterState, limit int) ([]model.Entity, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	return s.repo.List(ctx, filter, limit)
}

// Patch сливает дельту в текущее состояние и пишет строку целиком
func (s *EntityService) Patch(ctx context.Context, id string, p model.Patch) (model.Entity, error) {
	if p.IsEmpty() {
		return model.Entity{}, ErrValidation
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return current, err
	}

	merged := p.Apply(current)
	merged = stampCompletion(current, merged, p)
	if err := s.validate(merged); err != nil {
		return merged, err
	}
	return s.repo.Update(ctx, merged)
}

// BulkPatch применяет одну дельту ко всем id; запись атомарна на стороне репозитория
func (s *EntityService) BulkPatch(ctx context.Context, ids []string, p model.Patch) ([]model.Entity, error) {
	if len(ids) == 0 || p.IsEmpty() {
		return nil, ErrValidation
	}

	merged := make([]model.Entity, 0, len(ids))
	for _, id := range ids {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		m := p.Apply(current)
		m = stampCompletion(current, m, p)
		if err := s.validate(m); err != nil {
			return nil, err
		}
		merged = append(merged, m)
	}
	return s.repo.UpdateMany(ctx, merged)
}

func (s *EntityService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// stampCompletion - серверное вычисляемое поле: переход в done ставит
// completed_at, уход из done его снимает. Явное значение из патча главнее.
func stampCompletion(before, after model.Entity, p model.Patch) model.Entity {
	if p.CompletedAt != nil {
		return after
	}
	if after.Status == model.StatusDone {
		if before.Status != model.StatusDone || before.CompletedAt == nil {
			now := time.Now()
			after.CompletedAt = &now
		}
		return after
	}
	after.CompletedAt = nil
	return after
}

func (s *EntityService) validate(e model.Entity) error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrValidation
	}
	if e.Priority < 1 || e.Priority > 10 {
		return ErrValidation
	}
	if !model.ValidStatuses[e.Status] {
		return ErrValidation
	}
	return nil
}
