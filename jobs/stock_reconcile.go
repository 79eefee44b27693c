package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/stock"
)

// StockReconcileJob rescans every movement ledger and heals any cached
// quantity that drifted from the derived value. Drift should be rare;
// each healed row is logged and counted so it can be investigated.
type StockReconcileJob struct {
	Stock  *stock.Service
	Logger *slog.Logger
	clock  func() time.Time
}

// NewStockReconcileJob wires dependencies for the reconcile handler.
func NewStockReconcileJob(stockSvc *stock.Service, logger *slog.Logger) *StockReconcileJob {
	return &StockReconcileJob{
		Stock:  stockSvc,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes stock reconcile tasks.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stock == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	started := j.now()
	logger.Info("starting stock reconcile")

	healed, err := j.Stock.Resync(ctx, nil)
	if err != nil {
		logger.Error("stock reconcile", slog.Any("error", err))
		return err
	}
	if healed > 0 {
		logger.Warn("stock reconcile healed drift", slog.Int64("products", healed))
	}
	logger.Info("completed stock reconcile",
		slog.Int64("healed", healed), slog.Duration("duration", time.Since(started)))
	return nil
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockReconcile))
	}
	return slog.Default().With(slog.String("job", TaskStockReconcile))
}

func (j *StockReconcileJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
