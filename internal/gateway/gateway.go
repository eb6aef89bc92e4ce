package gateway

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// Четыре класса отказов удаленного стора; координатор различает их через errors.Is
var (
	ErrorValidation = errors.New("validation rejected")
	ErrorNetwork    = errors.New("network failure")
	ErrorNotFound   = errors.New("not found")
	ErrorConflict   = errors.New("conflict")
)

// Gateway определяет операции авторитетного удаленного стора.
// Сериализация и транспорт - забота реализации, координатор видит только
// сущности и четыре класса ошибок.
type Gateway interface {
	FetchAll(ctx context.Context, filter model.FilterState) ([]model.Entity, error)
	Create(ctx context.Context, patch model.Patch) (model.Entity, error)
	Update(ctx context.Context, id string, patch model.Patch) (model.Entity, error)
	BulkUpdate(ctx context.Context, ids []string, patch model.Patch) ([]model.Entity, error)
	Delete(ctx context.Context, id string) error
}
