package tracer

import (
	"context"
	"testing"

	"buddyboard-be/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{Enabled: false}, "node-1")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewResource(t *testing.T) {
	res := newResource("buddyboard-backend", "node-1")

	name, ok := res.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "buddyboard-backend", name.AsString())

	instance, ok := res.Set().Value(attribute.Key("service.instance.id"))
	require.True(t, ok)
	assert.Equal(t, "node-1", instance.AsString())
}
