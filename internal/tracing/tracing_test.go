package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "carecoins", "", true)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	shutdown, err = Setup(context.Background(), "carecoins", "http://localhost:4318", false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartAndEndRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	_, span := Start(context.Background(), "ActivityService.Approve", attribute.Int64("activity.id", 7))
	End(span, errors.New("only pending activities can be approved"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ActivityService.Approve", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
