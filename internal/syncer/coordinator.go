package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/gateway"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/store"
	"github.com/BuzzLyutic/taskboard/internal/view"
)

type OpKind string

const (
	OpCreate     OpKind = "create"
	OpUpdate     OpKind = "update"
	OpDelete     OpKind = "delete"
	OpMove       OpKind = "move"
	OpAssign     OpKind = "assign"
	OpBulkUpdate OpKind = "bulk_update"
	OpBulkAssign OpKind = "bulk_assign"
)

// Result - единый ответ каждого действия; действия никогда не паникуют
// и не возвращают error
type Result struct {
	Success  bool
	Data     *model.Entity
	Entities []model.Entity
	Error    string
}

func ok(e *model.Entity) Result           { return Result{Success: true, Data: e} }
func fail(format string, a ...any) Result { return Result{Error: fmt.Sprintf(format, a...)} }

// intent живет от старта мутации до ее осаждения, дальше выбрасывается
type intent struct {
	op       OpKind
	seq      uint64
	id       string
	snapshot model.Entity
	existed  bool
}

// Coordinator - единственный писатель Store. Оптимистично применяет мутацию,
// ждет единственную удаленную операцию и осаждает результат через проверку
// свежести: осаждение с устаревшим seq молча отбрасывается.
type Coordinator struct {
	store  *store.Store
	gw     gateway.Gateway
	views  *view.Engine
	logger *zap.Logger

	mu          sync.Mutex
	nextSeq     uint64
	lastApplied map[string]uint64
	inFlight    int

	filter model.FilterState
	sort   model.SortState
}

func NewCoordinator(s *store.Store, gw gateway.Gateway, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:       s,
		gw:          gw,
		views:       view.NewEngine(s),
		logger:      logger,
		lastApplied: make(map[string]uint64),
		sort:        model.SortState{Field: model.SortByCreatedAt},
	}
}

// CreateEntity создает сущность с клиентским id, чтобы оптимистичная и
// подтвержденная записи совпадали по ключу
func (c *Coordinator) CreateEntity(ctx context.Context, patch model.Patch) Result {
	if patch.Title == nil || strings.TrimSpace(*patch.Title) == "" {
		return fail("create: title is required")
	}

	now := time.Now()
	base := model.Entity{
		ID:        uuid.NewString(),
		Status:    model.StatusTodo,
		Priority:  5,
		CreatedAt: now,
		UpdatedAt: now,
	}
	optimistic := patch.Apply(base)

	c.mu.Lock()
	in := c.begin(OpCreate, optimistic.ID)
	c.store.Upsert(optimistic)
	c.mu.Unlock()

	created, err := c.gw.Create(ctx, withID(patch, optimistic.ID))
	return c.settle(ctx, in, created, err)
}

func (c *Coordinator) UpdateEntity(ctx context.Context, id string, patch model.Patch) Result {
	if patch.IsEmpty() {
		return fail("update: empty patch")
	}
	return c.mutate(ctx, OpUpdate, id, patch)
}

// MoveEntity переводит сущность в новый статус; при переходе в done локально
// проставляется предположительный completed_at, серверное значение его перекроет
func (c *Coordinator) MoveEntity(ctx context.Context, id string, newStatus model.Status) Result {
	if !model.ValidStatuses[newStatus] {
		return fail("move: unknown status %q", newStatus)
	}
	patch := model.Patch{Status: model.StatusPtr(newStatus)}
	if newStatus == model.StatusDone {
		patch.CompletedAt = model.TimePtr(time.Now())
	}
	return c.mutate(ctx, OpMove, id, patch)
}

func (c *Coordinator) AssignEntity(ctx context.Context, id string, assigneeID *string) Result {
	return c.mutate(ctx, OpAssign, id, model.Patch{Assignee: assigneeID, AssigneeSet: true})
}

func (c *Coordinator) DeleteEntity(ctx context.Context, id string) Result {
	c.mu.Lock()
	snapshot, existed := c.store.Get(id)
	if !existed {
		c.mu.Unlock()
		return fail("delete: entity %s not in collection", id)
	}
	in := c.begin(OpDelete, id)
	in.snapshot, in.existed = snapshot, true
	c.store.Remove(id)
	c.mu.Unlock()

	err := c.gw.Delete(ctx, id)
	return c.settle(ctx, in, model.Entity{}, err)
}

// mutate - общий путь одиночной мутации: снапшот, оптимистичное применение,
// одна удаленная операция, осаждение
func (c *Coordinator) mutate(ctx context.Context, op OpKind, id string, patch model.Patch) Result {
	c.mu.Lock()
	snapshot, existed := c.store.Get(id)
	if !existed {
		c.mu.Unlock()
		return fail("%s: entity %s not in collection", op, id)
	}
	in := c.begin(op, id)
	in.snapshot, in.existed = snapshot, true
	c.store.Patch(id, patch)
	c.mu.Unlock()

	updated, err := c.gw.Update(ctx, id, patch)
	return c.settle(ctx, in, updated, err)
}

// begin выдает intent со свежим seq; вызывается под c.mu
func (c *Coordinator) begin(op OpKind, id string) *intent {
	c.nextSeq++
	c.lastApplied[id] = c.nextSeq
	c.inFlight++
	return &intent{op: op, seq: c.nextSeq, id: id}
}

// settle осаждает одиночную мутацию. Если с момента оптимистичного применения
// по этому id появился более новый seq, осаждение уходит в терминальное
// состояние superseded: стор не трогаем.
func (c *Coordinator) settle(ctx context.Context, in *intent, confirmed model.Entity, err error) Result {
	c.mu.Lock()
	c.inFlight--
	stale := c.lastApplied[in.id] != in.seq

	if stale {
		c.mu.Unlock()
		c.logger.Debug("settlement superseded",
			zap.String("op", string(in.op)),
			zap.String("id", in.id),
			zap.Uint64("seq", in.seq),
		)
		if err != nil {
			return fail("%s %s: %v", in.op, in.id, err)
		}
		if in.op == OpDelete {
			return Result{Success: true}
		}
		return ok(&confirmed)
	}

	if err == nil {
		// Коммит: серверные поля главнее оптимистичной догадки
		if in.op != OpDelete {
			c.store.Upsert(confirmed)
		}
		delete(c.lastApplied, in.id)
		c.mu.Unlock()
		if in.op == OpDelete {
			return Result{Success: true}
		}
		return ok(&confirmed)
	}

	msg := fmt.Sprintf("%s %s: %v", in.op, in.id, err)
	switch {
	case errors.Is(err, gateway.ErrorNotFound):
		// Сущности больше нет на сервере - неявное удаление
		c.store.Remove(in.id)
		delete(c.lastApplied, in.id)
		c.store.SetError(msg)
		c.mu.Unlock()
	case errors.Is(err, gateway.ErrorConflict):
		c.store.SetError(msg)
		c.mu.Unlock()
		// Удаленное состояние разошлось с патчем - сверяемся целиком
		c.reconcile(ctx, msg)
	default:
		// Полный откат к снапшоту до мутации
		if in.existed {
			c.store.Upsert(in.snapshot)
		} else {
			c.store.Remove(in.id)
		}
		delete(c.lastApplied, in.id)
		c.store.SetError(msg)
		c.mu.Unlock()
	}

	c.logger.Warn("mutation rolled back",
		zap.String("op", string(in.op)),
		zap.String("id", in.id),
		zap.Uint64("seq", in.seq),
		zap.Error(err),
	)
	return Result{Error: msg}
}

// BulkUpdateStatus оптимистично красит все ids и шлет один батч-запрос
func (c *Coordinator) BulkUpdateStatus(ctx context.Context, ids []string, status model.Status) Result {
	if !model.ValidStatuses[status] {
		return fail("bulk update: unknown status %q", status)
	}
	patch := model.Patch{Status: model.StatusPtr(status)}
	if status == model.StatusDone {
		patch.CompletedAt = model.TimePtr(time.Now())
	}
	return c.bulk(ctx, OpBulkUpdate, ids, patch)
}

func (c *Coordinator) BulkAssign(ctx context.Context, ids []string, assigneeID *string) Result {
	return c.bulk(ctx, OpBulkAssign, ids, model.Patch{Assignee: assigneeID, AssigneeSet: true})
}

// bulk не делает поэлементного отката: частичный отказ батча не говорит, какие
// элементы реально упали на сервере, поэтому при любой ошибке выполняется
// полная сверка коллекции.
func (c *Coordinator) bulk(ctx context.Context, op OpKind, ids []string, patch model.Patch) Result {
	if len(ids) == 0 {
		return fail("%s: empty id set", op)
	}

	c.mu.Lock()
	c.nextSeq++
	seq := c.nextSeq
	for _, id := range ids {
		c.store.Patch(id, patch)
		c.lastApplied[id] = seq
	}
	c.inFlight++
	c.mu.Unlock()

	items, err := c.gw.BulkUpdate(ctx, ids, patch)

	c.mu.Lock()
	c.inFlight--
	if err != nil {
		c.mu.Unlock()
		msg := fmt.Sprintf("%s: %v", op, err)
		c.logger.Warn("bulk mutation failed, reconciling", zap.String("op", string(op)), zap.Error(err))
		c.reconcile(ctx, msg)
		return Result{Error: msg}
	}

	// Разносим поэлементные серверные результаты с той же проверкой свежести
	committed := make([]model.Entity, 0, len(items))
	for _, it := range items {
		if c.lastApplied[it.ID] != seq {
			c.logger.Debug("bulk item superseded", zap.String("id", it.ID), zap.Uint64("seq", seq))
			continue
		}
		c.store.Upsert(it)
		delete(c.lastApplied, it.ID)
		committed = append(committed, it)
	}
	c.mu.Unlock()
	return Result{Success: true, Entities: committed}
}

// Refresh перечитывает авторитетную коллекцию целиком и замещает стор
func (c *Coordinator) Refresh(ctx context.Context) Result {
	c.store.SetLoading(true)
	items, err := c.gw.FetchAll(ctx, model.FilterState{})
	if err != nil {
		msg := fmt.Sprintf("refresh: %v", err)
		c.store.SetError(msg)
		c.store.SetLoading(false)
		return Result{Error: msg}
	}

	c.mu.Lock()
	c.store.SetAll(items)
	// Полная замена перечеркивает все незавершенные оптимистичные intents
	c.lastApplied = make(map[string]uint64)
	c.mu.Unlock()

	c.store.SetLoading(false)
	return Result{Success: true, Entities: items}
}

// reconcile - восстановление после отказа батча или конфликта: перечитать все,
// затем оставить сообщение об исходном отказе (SetAll ошибку очищает)
func (c *Coordinator) reconcile(ctx context.Context, cause string) {
	c.store.SetLoading(true)
	items, err := c.gw.FetchAll(ctx, model.FilterState{})
	if err != nil {
		c.store.SetLoading(false)
		c.store.SetError(fmt.Sprintf("%s; reconcile failed: %v", cause, err))
		return
	}

	c.mu.Lock()
	c.store.SetAll(items)
	c.lastApplied = make(map[string]uint64)
	c.mu.Unlock()

	c.store.SetLoading(false)
	c.store.SetError(cause)
}

func (c *Coordinator) SetFilters(partial model.FilterState) Result {
	c.mu.Lock()
	c.filter = c.filter.Merge(partial)
	c.mu.Unlock()
	return Result{Success: true}
}

func (c *Coordinator) ClearFilters() Result {
	c.mu.Lock()
	c.filter = model.FilterState{}
	c.mu.Unlock()
	return Result{Success: true}
}

func (c *Coordinator) SetSort(s model.SortState) Result {
	c.mu.Lock()
	c.sort = s
	c.mu.Unlock()
	return Result{Success: true}
}

func (c *Coordinator) Filters() model.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// View возвращает отфильтрованную и отсортированную проекцию текущей коллекции
func (c *Coordinator) View() []model.Entity {
	c.mu.Lock()
	f, s := c.filter, c.sort
	c.mu.Unlock()
	return c.views.View(f, s)
}

// InFlight - число неосажденных мутаций; фоновая сверка пропускает тик,
// пока оно не ноль
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func withID(p model.Patch, id string) model.Patch {
	out := p
	out.ID = &id
	return out
}
