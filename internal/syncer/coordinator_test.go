package syncer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/gateway"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/store"
)

// fakeGateway - управляемый шлюз: каждый метод можно подменить в тесте
type fakeGateway struct {
	fetchAll   func(ctx context.Context, f model.FilterState) ([]model.Entity, error)
	create     func(ctx context.Context, p model.Patch) (model.Entity, error)
	update     func(ctx context.Context, id string, p model.Patch) (model.Entity, error)
	bulkUpdate func(ctx context.Context, ids []string, p model.Patch) ([]model.Entity, error)
	remove     func(ctx context.Context, id string) error
}

func (g *fakeGateway) FetchAll(ctx context.Context, f model.FilterState) ([]model.Entity, error) {
	if g.fetchAll == nil {
		return nil, nil
	}
	return g.fetchAll(ctx, f)
}

func (g *fakeGateway) Create(ctx context.Context, p model.Patch) (model.Entity, error) {
	if g.create == nil {
		return model.Entity{}, fmt.Errorf("%w: create not wired", gateway.ErrorNetwork)
	}
	return g.create(ctx, p)
}

func (g *fakeGateway) Update(ctx context.Context, id string, p model.Patch) (model.Entity, error) {
	if g.update == nil {
		return model.Entity{}, fmt.Errorf("%w: update not wired", gateway.ErrorNetwork)
	}
	return g.update(ctx, id, p)
}

func (g *fakeGateway) BulkUpdate(ctx context.Context, ids []string, p model.Patch) ([]model.Entity, error) {
	if g.bulkUpdate == nil {
		return nil, fmt.Errorf("%w: bulk not wired", gateway.ErrorNetwork)
	}
	return g.bulkUpdate(ctx, ids, p)
}

func (g *fakeGateway) Delete(ctx context.Context, id string) error {
	if g.remove == nil {
		return fmt.Errorf("%w: delete not wired", gateway.ErrorNetwork)
	}
	return g.remove(ctx, id)
}

func seeded(t *testing.T, gw gateway.Gateway, items ...model.Entity) (*Coordinator, *store.Store) {
	t.Helper()
	st := store.New(zap.NewNop())
	st.SetAll(items)
	return NewCoordinator(st, gw, zap.NewNop()), st
}

func task(id string, status model.Status) model.Entity {
	created := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	return model.Entity{
		ID:        id,
		Title:     "Task " + id,
		Status:    status,
		Priority:  5,
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// Сценарий 1: успех - серверные поля перекрывают оптимистичную догадку
func TestMoveEntity_CommitTakesServerFields(t *testing.T) {
	completed := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	serverEntity := task("1", model.StatusDone)
	serverEntity.CompletedAt = &completed
	serverEntity.Version = 2

	gw := &fakeGateway{
		update: func(_ context.Context, id string, p model.Patch) (model.Entity, error) {
			assert.Equal(t, "1", id)
			require.NotNil(t, p.Status)
			assert.Equal(t, model.StatusDone, *p.Status)
			return serverEntity, nil
		},
	}
	coord, st := seeded(t, gw, task("1", model.StatusTodo), task("2", model.StatusDone))

	res := coord.MoveEntity(context.Background(), "1", model.StatusDone)

	require.True(t, res.Success, res.Error)
	got, found := st.Get("1")
	require.True(t, found)
	assert.Equal(t, serverEntity, got, "post-settlement state equals the gateway entity field-for-field")
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(completed))
	assert.Equal(t, 0, coord.InFlight())
}

// Оптимистичное применение видно до осаждения
func TestMoveEntity_OptimisticApplyIsImmediate(t *testing.T) {
	applied := make(chan struct{})
	release := make(chan struct{})

	gw := &fakeGateway{
		update: func(_ context.Context, id string, _ model.Patch) (model.Entity, error) {
			close(applied)
			<-release
			return task(id, model.StatusDone), nil
		},
	}
	coord, st := seeded(t, gw, task("1", model.StatusTodo))

	done := make(chan Result, 1)
	go func() { done <- coord.MoveEntity(context.Background(), "1", model.StatusDone) }()

	<-applied
	got, _ := st.Get("1")
	assert.Equal(t, model.StatusDone, got.Status, "store reflects the patch before settlement")
	assert.Equal(t, 1, coord.InFlight())

	close(release)
	res := <-done
	assert.True(t, res.Success)
}

// Сценарий 2: отказ - полный откат к снапшоту и непустая ошибка
func TestMoveEntity_FailureRollsBackToSnapshot(t *testing.T) {
	gw := &fakeGateway{
		update: func(context.Context, string, model.Patch) (model.Entity, error) {
			return model.Entity{}, fmt.Errorf("%w: gateway timeout", gateway.ErrorNetwork)
		},
	}
	before := task("1", model.StatusTodo)
	coord, st := seeded(t, gw, before)

	res := coord.MoveEntity(context.Background(), "1", model.StatusDone)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	got, found := st.Get("1")
	require.True(t, found)
	assert.Equal(t, before, got, "no partial field leaks from the optimistic patch")
	assert.NotEmpty(t, st.Err())
}

// Сценарий 5: осаждение intent-а n после оптимистичного применения n+1
// не должно трогать состояние n+1 - ни при успехе n, ни при отказе
func TestStaleSettlementIsDiscarded(t *testing.T) {
	for _, tc := range []struct {
		name    string
		staleOK bool
	}{
		{"stale success", true},
		{"stale failure", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			firstCalled := make(chan struct{})
			release := make(chan struct{})

			gw := &fakeGateway{}
			calls := 0
			gw.update = func(_ context.Context, id string, p model.Patch) (model.Entity, error) {
				calls++
				if calls == 1 {
					// Интент n висит, пока не осядет n+1
					close(firstCalled)
					<-release
					if tc.staleOK {
						return task(id, model.StatusDone), nil
					}
					return model.Entity{}, fmt.Errorf("%w: slow failure", gateway.ErrorNetwork)
				}
				return task(id, *p.Status), nil
			}
			coord, st := seeded(t, gw, task("1", model.StatusTodo))

			first := make(chan Result, 1)
			go func() { first <- coord.MoveEntity(context.Background(), "1", model.StatusDone) }()
			<-firstCalled

			res := coord.MoveEntity(context.Background(), "1", model.StatusInProgress)
			require.True(t, res.Success, res.Error)

			close(release)
			<-first

			got, _ := st.Get("1")
			assert.Equal(t, model.StatusInProgress, got.Status,
				"newer intent state must never be reverted by an older settlement")
			assert.Empty(t, st.Err(), "stale failure is discarded silently")
			assert.Equal(t, 0, coord.InFlight())
		})
	}
}

func TestCreateEntity(t *testing.T) {
	gw := &fakeGateway{
		create: func(_ context.Context, p model.Patch) (model.Entity, error) {
			require.NotNil(t, p.ID, "client supplies the id")
			e := task(*p.ID, model.StatusTodo)
			e.Title = *p.Title
			return e, nil
		},
	}
	coord, st := seeded(t, gw)

	res := coord.CreateEntity(context.Background(), model.Patch{Title: model.StringPtr("New work")})

	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Data)
	got, found := st.Get(res.Data.ID)
	require.True(t, found)
	assert.Equal(t, "New work", got.Title)
}

func TestCreateEntity_ValidationRejectsBeforeApply(t *testing.T) {
	coord, st := seeded(t, &fakeGateway{})

	res := coord.CreateEntity(context.Background(), model.Patch{Title: model.StringPtr("   ")})

	assert.False(t, res.Success)
	assert.Equal(t, 0, st.Len(), "no optimistic write happened")
	assert.Empty(t, st.Err())
}

func TestCreateEntity_FailureRemovesOptimisticRow(t *testing.T) {
	gw := &fakeGateway{
		create: func(context.Context, model.Patch) (model.Entity, error) {
			return model.Entity{}, fmt.Errorf("%w: boom", gateway.ErrorNetwork)
		},
	}
	coord, st := seeded(t, gw)

	res := coord.CreateEntity(context.Background(), model.Patch{Title: model.StringPtr("Doomed")})

	assert.False(t, res.Success)
	assert.Equal(t, 0, st.Len())
	assert.NotEmpty(t, st.Err())
}

func TestDeleteEntity(t *testing.T) {
	gw := &fakeGateway{remove: func(context.Context, string) error { return nil }}
	coord, st := seeded(t, gw, task("1", model.StatusTodo))

	res := coord.DeleteEntity(context.Background(), "1")

	assert.True(t, res.Success)
	assert.Equal(t, 0, st.Len())
}

func TestDeleteEntity_FailureRestoresSnapshot(t *testing.T) {
	gw := &fakeGateway{
		remove: func(context.Context, string) error {
			return fmt.Errorf("%w: unavailable", gateway.ErrorNetwork)
		},
	}
	before := task("1", model.StatusTodo)
	coord, st := seeded(t, gw, before)

	res := coord.DeleteEntity(context.Background(), "1")

	assert.False(t, res.Success)
	got, found := st.Get("1")
	require.True(t, found)
	assert.Equal(t, before, got)
}

func TestAssignEntity_ExplicitNullClearsAssignee(t *testing.T) {
	alice := "alice"
	withAssignee := task("1", model.StatusTodo)
	withAssignee.AssigneeID = &alice

	gw := &fakeGateway{
		update: func(_ context.Context, id string, p model.Patch) (model.Entity, error) {
			assert.True(t, p.AssigneeSet)
			assert.Nil(t, p.Assignee)
			return task(id, model.StatusTodo), nil
		},
	}
	coord, st := seeded(t, gw, withAssignee)

	res := coord.AssignEntity(context.Background(), "1", nil)

	require.True(t, res.Success, res.Error)
	got, _ := st.Get("1")
	assert.Nil(t, got.AssigneeID)
}

// Не найдено на сервере - неявное удаление плюс ошибка
func TestUpdate_NotFoundRemovesLocally(t *testing.T) {
	gw := &fakeGateway{
		update: func(context.Context, string, model.Patch) (model.Entity, error) {
			return model.Entity{}, fmt.Errorf("%w: entity gone", gateway.ErrorNotFound)
		},
	}
	coord, st := seeded(t, gw, task("1", model.StatusTodo))

	res := coord.UpdateEntity(context.Background(), "1", model.Patch{Priority: model.IntPtr(9)})

	assert.False(t, res.Success)
	_, found := st.Get("1")
	assert.False(t, found)
	assert.NotEmpty(t, st.Err())
}

// Конфликт - ошибка наружу и полная сверка коллекции
func TestUpdate_ConflictTriggersReconcile(t *testing.T) {
	authoritative := []model.Entity{task("1", model.StatusArchived)}
	fetched := false

	gw := &fakeGateway{
		update: func(context.Context, string, model.Patch) (model.Entity, error) {
			return model.Entity{}, fmt.Errorf("%w: version mismatch", gateway.ErrorConflict)
		},
		fetchAll: func(context.Context, model.FilterState) ([]model.Entity, error) {
			fetched = true
			return authoritative, nil
		},
	}
	coord, st := seeded(t, gw, task("1", model.StatusTodo))

	res := coord.UpdateEntity(context.Background(), "1", model.Patch{Priority: model.IntPtr(9)})

	assert.False(t, res.Success)
	assert.True(t, fetched)
	got, _ := st.Get("1")
	assert.Equal(t, model.StatusArchived, got.Status, "store equals the refetched collection")
	assert.NotEmpty(t, st.Err())
}

func TestMutationOnUnknownIDFailsWithoutStoreWrite(t *testing.T) {
	coord, st := seeded(t, &fakeGateway{}, task("1", model.StatusTodo))
	v := st.Version()

	res := coord.MoveEntity(context.Background(), "ghost", model.StatusDone)

	assert.False(t, res.Success)
	assert.Equal(t, v, st.Version())
}

func TestBulkUpdateStatus_Success(t *testing.T) {
	gw := &fakeGateway{
		bulkUpdate: func(_ context.Context, ids []string, p model.Patch) ([]model.Entity, error) {
			assert.ElementsMatch(t, []string{"1", "2"}, ids)
			out := make([]model.Entity, 0, len(ids))
			for _, id := range ids {
				e := task(id, *p.Status)
				e.Version = 2
				out = append(out, e)
			}
			return out, nil
		},
	}
	coord, st := seeded(t, gw, task("1", model.StatusTodo), task("2", model.StatusTodo), task("3", model.StatusTodo))

	res := coord.BulkUpdateStatus(context.Background(), []string{"1", "2"}, model.StatusInProgress)

	require.True(t, res.Success, res.Error)
	assert.Len(t, res.Entities, 2)
	for _, id := range []string{"1", "2"} {
		got, _ := st.Get(id)
		assert.Equal(t, model.StatusInProgress, got.Status)
		assert.Equal(t, 2, got.Version, "server results fanned back per item")
	}
	untouched, _ := st.Get("3")
	assert.Equal(t, model.StatusTodo, untouched.Status)
}

// Сценарий 3: отказ батча - никакого поэлементного отката, только полная сверка
func TestBulkUpdateStatus_FailureRefetchesCollection(t *testing.T) {
	authoritative := []model.Entity{
		task("1", model.StatusTodo),
		task("2", model.StatusDone),
	}
	fetchCalls := 0

	gw := &fakeGateway{
		bulkUpdate: func(context.Context, []string, model.Patch) ([]model.Entity, error) {
			return nil, fmt.Errorf("%w: 502 bad gateway", gateway.ErrorNetwork)
		},
		fetchAll: func(context.Context, model.FilterState) ([]model.Entity, error) {
			fetchCalls++
			return authoritative, nil
		},
	}
	coord, st := seeded(t, gw, task("1", model.StatusTodo), task("2", model.StatusDone))

	res := coord.BulkUpdateStatus(context.Background(), []string{"1", "2"}, model.StatusInProgress)

	assert.False(t, res.Success)
	assert.Equal(t, 1, fetchCalls)
	for _, want := range authoritative {
		got, found := st.Get(want.ID)
		require.True(t, found)
		assert.Equal(t, want, got, "final store equals the refetched collection, not the optimistic one")
	}
	assert.NotEmpty(t, st.Err())
	assert.Equal(t, 0, coord.InFlight())
}

func TestBulkAssign(t *testing.T) {
	bob := "bob"
	gw := &fakeGateway{
		bulkUpdate: func(_ context.Context, ids []string, p model.Patch) ([]model.Entity, error) {
			assert.True(t, p.AssigneeSet)
			out := make([]model.Entity, 0, len(ids))
			for _, id := range ids {
				e := task(id, model.StatusTodo)
				e.AssigneeID = p.Assignee
				out = append(out, e)
			}
			return out, nil
		},
	}
	coord, st := seeded(t, gw, task("1", model.StatusTodo), task("2", model.StatusTodo))

	res := coord.BulkAssign(context.Background(), []string{"1", "2"}, &bob)

	require.True(t, res.Success, res.Error)
	for _, id := range []string{"1", "2"} {
		got, _ := st.Get(id)
		require.NotNil(t, got.AssigneeID)
		assert.Equal(t, "bob", *got.AssigneeID)
	}
}

// Полная замена коллекции перечеркивает висящие intents: их осаждения устаревают
func TestRefreshSupersedesInFlightIntents(t *testing.T) {
	updateCalled := make(chan struct{})
	release := make(chan struct{})

	authoritative := []model.Entity{task("1", model.StatusArchived)}
	gw := &fakeGateway{
		update: func(_ context.Context, id string, _ model.Patch) (model.Entity, error) {
			close(updateCalled)
			<-release
			return task(id, model.StatusDone), nil
		},
		fetchAll: func(context.Context, model.FilterState) ([]model.Entity, error) {
			return authoritative, nil
		},
	}
	coord, st := seeded(t, gw, task("1", model.StatusTodo))

	done := make(chan Result, 1)
	go func() { done <- coord.MoveEntity(context.Background(), "1", model.StatusDone) }()
	<-updateCalled

	require.True(t, coord.Refresh(context.Background()).Success)

	close(release)
	<-done

	got, _ := st.Get("1")
	assert.Equal(t, model.StatusArchived, got.Status,
		"settlement arriving after a full replace must not overwrite it")
}

// Сценарий 4: фильтры меняют проекцию, но не канонический стор
func TestSetFiltersAffectsViewNotStore(t *testing.T) {
	coord, st := seeded(t, &fakeGateway{},
		task("1", model.StatusTodo), task("2", model.StatusDone), task("3", model.StatusDone))

	res := coord.SetFilters(model.FilterState{Statuses: []model.Status{model.StatusDone}})
	require.True(t, res.Success)

	projection := coord.View()
	assert.Len(t, projection, 2)
	for _, e := range projection {
		assert.Equal(t, model.StatusDone, e.Status)
	}
	assert.Equal(t, 3, st.Len(), "canonical collection unchanged")

	coord.ClearFilters()
	assert.Len(t, coord.View(), 3)
}

func TestSetSortOrdersView(t *testing.T) {
	high := task("1", model.StatusTodo)
	high.Priority = 9
	low := task("2", model.StatusTodo)
	low.Priority = 1
	coord, _ := seeded(t, &fakeGateway{}, high, low)

	coord.SetSort(model.SortState{Field: model.SortByPriority, Descending: true})
	got := coord.View()
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)

	coord.SetSort(model.SortState{Field: model.SortByPriority})
	got = coord.View()
	assert.Equal(t, "2", got[0].ID)
}

func TestRefresh_FailureKeepsCollection(t *testing.T) {
	gw := &fakeGateway{
		fetchAll: func(context.Context, model.FilterState) ([]model.Entity, error) {
			return nil, fmt.Errorf("%w: offline", gateway.ErrorNetwork)
		},
	}
	coord, st := seeded(t, gw, task("1", model.StatusTodo))

	res := coord.Refresh(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, 1, st.Len())
	assert.NotEmpty(t, st.Err())
	assert.False(t, st.Loading())
}

func TestConcurrentMutationsOnDistinctIDs(t *testing.T) {
	gw := &fakeGateway{
		update: func(_ context.Context, id string, p model.Patch) (model.Entity, error) {
			return task(id, *p.Status), nil
		},
	}
	coord, st := seeded(t, gw,
		task("1", model.StatusTodo), task("2", model.StatusTodo), task("3", model.StatusTodo))

	done := make(chan Result, 3)
	for _, id := range []string{"1", "2", "3"} {
		go func(id string) { done <- coord.MoveEntity(context.Background(), id, model.StatusDone) }(id)
	}
	for i := 0; i < 3; i++ {
		res := <-done
		assert.True(t, res.Success, res.Error)
	}

	waitFor(t, func() bool { return coord.InFlight() == 0 })
	for _, id := range []string{"1", "2", "3"} {
		got, _ := st.Get(id)
		assert.Equal(t, model.StatusDone, got.Status)
	}
}
