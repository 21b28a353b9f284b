package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"mindo/application/ports"
)

// PersistenceRunner launches remote writes in detached goroutines. The caller
// never waits for them: failures are logged and counted, never returned, and
// local state is not rolled back. Writes launched by different calls carry no
// ordering guarantee.
type PersistenceRunner struct {
	timeout time.Duration
	logger  *zap.Logger
	metrics ports.Metrics
	wg      sync.WaitGroup
}

// NewPersistenceRunner creates a runner whose jobs each get their own timeout
func NewPersistenceRunner(timeout time.Duration, metrics ports.Metrics, logger *zap.Logger) *PersistenceRunner {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &PersistenceRunner{
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Go runs job in the background and logs its failure as an error
func (r *PersistenceRunner) Go(operation string, job func(ctx context.Context) error, fields ...zap.Field) {
	r.launch(operation, false, job, fields)
}

// GoBestEffort runs a side cleanup job whose failure is only a warning
func (r *PersistenceRunner) GoBestEffort(operation string, job func(ctx context.Context) error, fields ...zap.Field) {
	r.launch(operation, true, job, fields)
}

func (r *PersistenceRunner) launch(operation string, bestEffort bool, job func(ctx context.Context) error, fields []zap.Field) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		start := time.Now()
		err := r.safeRun(ctx, job)
		r.metrics.ObserveGatewayCall(operation, time.Since(start), err)
		if err == nil {
			return
		}

		fields = append(fields, zap.String("operation", operation), zap.Error(err))
		if bestEffort {
			r.logger.Warn("Best-effort cleanup failed", fields...)
			return
		}
		r.logger.Error("Remote persistence failed, local state kept", fields...)
	}()
}

func (r *PersistenceRunner) safeRun(ctx context.Context, job func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("persistence job panicked: %v", p)
		}
	}()
	return job(ctx)
}

// Wait blocks until every launched job has finished
func (r *PersistenceRunner) Wait() {
	r.wg.Wait()
}
