package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchAPI is the slice of the CloudWatch client used by Metrics.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics publishes operational metrics to CloudWatch. Every publish is
// best-effort: a metrics failure must never fail the operation it measures.
type Metrics struct {
	namespace string
	client    CloudWatchAPI
}

// NewMetrics creates a Metrics publisher. A nil client disables publishing.
func NewMetrics(namespace string, client CloudWatchAPI) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
	}
}

// RecordLatency publishes an operation's duration.
func (m *Metrics) RecordLatency(ctx context.Context, operation string, d time.Duration) {
	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("OperationLatency"),
		Unit:       types.StandardUnitMilliseconds,
		Value:      aws.Float64(float64(d.Milliseconds())),
		Dimensions: []types.Dimension{
			{Name: aws.String("Operation"), Value: aws.String(operation)},
		},
	})
}

// RecordCount publishes an occurrence counter.
func (m *Metrics) RecordCount(ctx context.Context, name, operation string, value float64) {
	m.put(ctx, types.MetricDatum{
		MetricName: aws.String(name),
		Unit:       types.StandardUnitCount,
		Value:      aws.Float64(value),
		Dimensions: []types.Dimension{
			{Name: aws.String("Operation"), Value: aws.String(operation)},
		},
	})
}

// RecordError publishes an error counter for an operation.
func (m *Metrics) RecordError(ctx context.Context, operation string) {
	m.RecordCount(ctx, "OperationErrors", operation, 1)
}

func (m *Metrics) put(ctx context.Context, datum types.MetricDatum) {
	if m == nil || m.client == nil {
		return
	}
	datum.Timestamp = aws.Time(time.Now())
	// Error intentionally discarded; metrics are fire-and-forget.
	_, _ = m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []types.MetricDatum{datum},
	})
}
