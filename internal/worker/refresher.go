package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/syncer"
)

// Coordinator - то, что рефрешер дергает у координатора мутаций
type Coordinator interface {
	Refresh(ctx context.Context) syncer.Result
	InFlight() int
}

// Refresher периодически сверяет локальную коллекцию с сервером.
// Так клиент видит чужие правки: последняя серверная запись просто
// замещает локальное состояние.
type Refresher struct {
	coord    Coordinator
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup
	stop     chan struct{}
}

func NewRefresher(coord Coordinator, logger *zap.Logger, interval time.Duration) *Refresher {
	return &Refresher{
		coord:    coord,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("Starting background refresher", zap.Duration("interval", r.interval))

	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *Refresher) Stop() {
	r.logger.Info("Stopping background refresher...")
	close(r.stop)
	r.wg.Wait()
	r.logger.Info("Background refresher stopped")
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	// Пока есть неосажденные мутации, сверка затерла бы оптимистичное состояние
	if n := r.coord.InFlight(); n > 0 {
		r.logger.Debug("refresh skipped, mutations in flight", zap.Int("in_flight", n))
		return
	}

	if res := r.coord.Refresh(ctx); !res.Success {
		r.logger.Error("background refresh failed", zap.String("error", res.Error))
	}
}
