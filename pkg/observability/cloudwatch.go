package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchAPI is the subset of the CloudWatch client used by the sink
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchSink mirrors operation metrics into CloudWatch. It is used under
// Lambda where nothing scrapes /metrics.
type CloudWatchSink struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
}

// NewCloudWatchSink creates a sink; a nil client disables it
func NewCloudWatchSink(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchSink {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudWatchSink{namespace: namespace, client: client, logger: logger}
}

// RecordOperation puts latency and count datums for one operation
func (s *CloudWatchSink) RecordOperation(ctx context.Context, operation, outcome string, duration time.Duration) {
	if s == nil {
		return
	}

	now := time.Now()
	dimensions := []types.Dimension{
		{
			Name:  aws.String("Operation"),
			Value: aws.String(operation),
		},
		{
			Name:  aws.String("Outcome"),
			Value: aws.String(outcome),
		},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(s.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String("OperationLatency"),
				Dimensions: dimensions,
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       types.StandardUnitMilliseconds,
				Timestamp:  aws.Time(now),
			},
			{
				MetricName: aws.String("OperationCount"),
				Dimensions: dimensions,
				Value:      aws.Float64(1),
				Unit:       types.StandardUnitCount,
				Timestamp:  aws.Time(now),
			},
		},
	}

	if _, err := s.client.PutMetricData(ctx, input); err != nil {
		s.logger.Warn("failed to send metrics",
			zap.String("operation", operation),
			zap.Error(err))
	}
}
