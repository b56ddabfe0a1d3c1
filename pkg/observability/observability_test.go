package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func TestCollector_RecordOperation(t *testing.T) {
	cw := &fakeCloudWatch{}
	c := NewCollector("bobbin", NewCloudWatchSink("Bobbin", cw, nil))

	c.RecordOperation(context.Background(), "CreateArtifact", 12*time.Millisecond, nil)
	c.RecordOperation(context.Background(), "CreateArtifact", time.Millisecond, pkgerrors.NewNotFoundError("artifact", "x"))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `bobbin_graph_operations_total{operation="CreateArtifact",outcome="ok"} 1`)
	assert.Contains(t, body, `bobbin_graph_operations_total{operation="CreateArtifact",outcome="NOT_FOUND"} 1`)
	require.Len(t, cw.inputs, 2)
	assert.Equal(t, "Bobbin", *cw.inputs[0].Namespace)
	assert.Len(t, cw.inputs[0].MetricData, 2)
}

func TestCollector_SinkFailureIsSwallowed(t *testing.T) {
	cw := &fakeCloudWatch{err: errors.New("throttled")}
	c := NewCollector("bobbin", NewCloudWatchSink("Bobbin", cw, nil))

	assert.NotPanics(t, func() {
		c.RecordOperation(context.Background(), "GetConcept", time.Millisecond, nil)
	})
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.RecordOperation(context.Background(), "x", time.Second, nil)
		c.RecordSuggestions(3)
		c.RecordEventPublish("artifact.created", nil)
		c.RecordHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Second)
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("bobbin", nil)
	c.RecordSuggestions(4)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bobbin_connection_suggestions_returned")
}

func TestTracer_DisabledRunsFunction(t *testing.T) {
	tracer := NewTracer("bobbin", false)
	called := false

	err := tracer.TraceFunction(context.Background(), "op", func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, (*Tracer)(nil).Enabled())
}
