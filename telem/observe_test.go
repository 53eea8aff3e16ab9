package telem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracing_DisabledWithoutEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := InitTracing(context.Background(), "foodhub-test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}
