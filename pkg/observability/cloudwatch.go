package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// maximum datums per PutMetricData call
const cloudWatchBatch = 20

// CloudWatchAPI is the subset of the CloudWatch client used here
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics buffers observations and ships them to CloudWatch on
// Flush. Observations never block on the network.
type CloudWatchMetrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending []types.MetricDatum
}

// NewCloudWatchMetrics creates a new metrics sink
func NewCloudWatchMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *CloudWatchMetrics) add(name string, value float64, unit types.StandardUnit, dims map[string]string) {
	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(m.now()),
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	m.mu.Lock()
	m.pending = append(m.pending, datum)
	m.mu.Unlock()
}

// ObserveGatewayCall implements ports.Metrics
func (m *CloudWatchMetrics) ObserveGatewayCall(operation string, duration time.Duration, err error) {
	dims := map[string]string{"Operation": operation, "Status": statusOf(err)}
	m.add("GatewayLatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dims)
	m.add("GatewayCount", 1, types.StandardUnitCount, dims)
}

// ObserveLayout implements ports.Metrics
func (m *CloudWatchMetrics) ObserveLayout(algorithm string, nodes int, duration time.Duration) {
	dims := map[string]string{"Algorithm": algorithm}
	m.add("LayoutLatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dims)
	m.add("LayoutNodes", float64(nodes), types.StandardUnitCount, dims)
}

// IncReviewGrade implements ports.Metrics
func (m *CloudWatchMetrics) IncReviewGrade(grade string) {
	m.add("ReviewGrades", 1, types.StandardUnitCount, map[string]string{"Grade": grade})
}

// Flush sends every buffered datum. Failed batches are dropped and logged.
func (m *CloudWatchMetrics) Flush(ctx context.Context) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for i := 0; i < len(pending); i += cloudWatchBatch {
		end := i + cloudWatchBatch
		if end > len(pending) {
			end = len(pending)
		}
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: pending[i:end],
		})
		if err != nil {
			m.logger.Warn("Failed to send metrics", zap.Error(err), zap.Int("dropped", end-i))
		}
	}
}

// Run flushes every interval until ctx is done, then flushes once more
func (m *CloudWatchMetrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			m.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			m.Flush(ctx)
		}
	}
}

// MultiMetrics fans every observation out to several sinks
type MultiMetrics []interface {
	ObserveGatewayCall(operation string, duration time.Duration, err error)
	ObserveLayout(algorithm string, nodes int, duration time.Duration)
	IncReviewGrade(grade string)
}

// ObserveGatewayCall implements ports.Metrics
func (mm MultiMetrics) ObserveGatewayCall(operation string, duration time.Duration, err error) {
	for _, m := range mm {
		m.ObserveGatewayCall(operation, duration, err)
	}
}

// ObserveLayout implements ports.Metrics
func (mm MultiMetrics) ObserveLayout(algorithm string, nodes int, duration time.Duration) {
	for _, m := range mm {
		m.ObserveLayout(algorithm, nodes, duration)
	}
}

// IncReviewGrade implements ports.Metrics
func (mm MultiMetrics) IncReviewGrade(grade string) {
	for _, m := range mm {
		m.IncReviewGrade(grade)
	}
}
