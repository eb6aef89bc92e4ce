package repo

import (
	"context"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// EntityRepository определяет интерфейс авторитетного хранилища сущностей
type EntityRepository interface {
	Create(ctx context.Context, e model.Entity) (model.Entity, error)
	Get(ctx context.Context, id string) (model.Entity, error)
	List(ctx context.Context, filter model.FilterState, limit int) ([]model.Entity, error)
	Update(ctx context.Context, e model.Entity) (model.Entity, error)
	UpdateMany(ctx context.Context, items []model.Entity) ([]model.Entity, error)
	Delete(ctx context.Context, id string) error
}
