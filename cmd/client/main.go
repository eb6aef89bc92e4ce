package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/config"
	"github.com/BuzzLyutic/taskboard/internal/gateway"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/store"
	"github.com/BuzzLyutic/taskboard/internal/syncer"
	"github.com/BuzzLyutic/taskboard/internal/worker"
)

// Демонстрационный клиент: поднимает sync-ядро поверх REST API и печатает
// проекцию коллекции. UI-обвязка живет в другом репозитории.
func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	st := store.New(logger)
	gw := gateway.NewHTTPGateway(cfg.APIBaseURL, cfg.RequestTimeout, logger)
	coord := syncer.NewCoordinator(st, gw, logger)

	if res := coord.Refresh(ctx); !res.Success {
		logger.Fatal("initial fetch failed", zap.String("error", res.Error))
	}
	logger.Info("Collection loaded", zap.Int("entities", st.Len()))

	coord.SetSort(model.SortState{Field: model.SortByPriority, Descending: true})
	for _, e := range coord.View() {
		fmt.Printf("%-38s %-12s p%-2d %s\n", e.ID, e.Status, e.Priority, e.Title)
	}

	// Фоновая сверка, пока клиент жив
	refresher := worker.NewRefresher(coord, logger, cfg.RefreshInterval)
	refresher.Start(ctx)
	defer refresher.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit
	logger.Info("Client stopped")
}
