package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

func entity(id, title string, status model.Status) model.Entity {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	return model.Entity{
		ID:        id,
		Title:     title,
		Status:    status,
		Priority:  5,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_SetAll(t *testing.T) {
	s := New(zap.NewNop())
	s.SetError("stale failure")

	s.SetAll([]model.Entity{
		entity("a", "First", model.StatusTodo),
		entity("b", "Second", model.StatusDone),
	})

	assert.Equal(t, 2, s.Len())
	assert.Empty(t, s.Err(), "SetAll must clear the error flag")

	// Повторная полная замена вытесняет старые записи
	s.SetAll([]model.Entity{entity("c", "Third", model.StatusTodo)})
	assert.Equal(t, 1, s.Len())
	_, found := s.Get("a")
	assert.False(t, found)
}

func TestStore_UpsertAndGet(t *testing.T) {
	s := New(zap.NewNop())

	e := entity("a", "First", model.StatusTodo)
	s.Upsert(e)

	got, found := s.Get("a")
	require.True(t, found)
	assert.Equal(t, e, got)

	// Replace по тому же id
	e.Title = "Renamed"
	s.Upsert(e)
	got, _ = s.Get("a")
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 1, s.Len())

	// Пустой id игнорируется
	s.Upsert(model.Entity{Title: "no id"})
	assert.Equal(t, 1, s.Len())
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(zap.NewNop())
	e := entity("a", "First", model.StatusTodo)
	e.Tags = []string{"one"}
	s.Upsert(e)

	got, _ := s.Get("a")
	got.Tags[0] = "mutated"

	again, _ := s.Get("a")
	assert.Equal(t, "one", again.Tags[0], "reads must not alias store internals")
}

func TestStore_Patch(t *testing.T) {
	s := New(zap.NewNop())
	s.Upsert(entity("a", "First", model.StatusTodo))

	s.Patch("a", model.Patch{Status: model.StatusPtr(model.StatusDone)})

	got, _ := s.Get("a")
	assert.Equal(t, model.StatusDone, got.Status)
	assert.Equal(t, "First", got.Title, "untouched fields survive the merge")
}

func TestStore_PatchMissingIDIsNoop(t *testing.T) {
	s := New(zap.NewNop())
	before := s.Version()

	s.Patch("ghost", model.Patch{Title: model.StringPtr("x")})

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, before, s.Version())
}

func TestStore_Remove(t *testing.T) {
	s := New(zap.NewNop())
	s.Upsert(entity("a", "First", model.StatusTodo))

	s.Remove("a")
	assert.Equal(t, 0, s.Len())

	// Повторное удаление - no-op без смены версии
	v := s.Version()
	s.Remove("a")
	assert.Equal(t, v, s.Version())
}

func TestStore_Flags(t *testing.T) {
	s := New(zap.NewNop())

	s.SetLoading(true)
	assert.True(t, s.Loading())
	s.SetLoading(false)
	assert.False(t, s.Loading())

	s.SetError("boom")
	assert.Equal(t, "boom", s.Err())
	s.SetError("")
	assert.Empty(t, s.Err())
}

func TestStore_VersionBumpsOnEveryMutation(t *testing.T) {
	s := New(zap.NewNop())
	v0 := s.Version()

	s.Upsert(entity("a", "First", model.StatusTodo))
	v1 := s.Version()
	assert.Greater(t, v1, v0)

	s.Patch("a", model.Patch{Priority: model.IntPtr(7)})
	assert.Greater(t, s.Version(), v1)
}

func TestStore_SubscribeNotifies(t *testing.T) {
	s := New(zap.NewNop())

	var calls int
	s.Subscribe(func() { calls++ })

	s.Upsert(entity("a", "First", model.StatusTodo))
	s.SetLoading(true)
	s.Remove("a")

	assert.Equal(t, 3, calls)
}
