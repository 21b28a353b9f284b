package di

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mindo/application/ports"
	"mindo/application/services"
	"mindo/infrastructure/config"
	"mindo/interfaces/http/rest"
	"mindo/pkg/auth"
	"mindo/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Gateway    ports.Gateway
	Blobs      ports.BlobStorage
	Collector  *observability.Collector
	CloudWatch *observability.CloudWatchMetrics
	Runner     *services.PersistenceRunner
	Workspaces *services.Workspaces
	Layout     *services.LayoutService
	Reviews    *services.ReviewService
	Analytics  *services.AnalyticsService
	Assets     *services.AssetService
	Limiter    auth.RateLimiter
	Router     *rest.Router
}

// Drain waits for in-flight persistence work, up to ctx's deadline, and
// flushes buffered metrics. It reports whether every job finished.
func (c *Container) Drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		c.Runner.Wait()
		close(done)
	}()

	finished := true
	select {
	case <-done:
	case <-ctx.Done():
		finished = false
		c.Logger.Warn("Persistence jobs still running at shutdown")
	}

	if c.CloudWatch != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c.CloudWatch.Flush(flushCtx)
		cancel()
	}
	return finished
}
