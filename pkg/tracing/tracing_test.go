package tracing

import (
	"context"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_Disabled(t *testing.T) {
	tr, closeFn, err := InitTracer(Config{})
	require.NoError(t, err)
	assert.IsType(t, opentracing.NoopTracer{}, tr)
	closeFn()

	span, ctx := StartSpan(context.Background(), "cycle", map[string]any{"symbol": "BTC-USDT-SWAP"})
	require.NotNil(t, span)
	assert.NotNil(t, opentracing.SpanFromContext(ctx))
	span.Finish()
}
