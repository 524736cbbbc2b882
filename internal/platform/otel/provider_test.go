package otel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"unitedhelp/internal/platform/config"
	"unitedhelp/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), config.OTelConfig{Enabled: true, ServiceName: "test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_NoopWhenDisabled(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), config.OTelConfig{
		Endpoint:    "http://localhost:4318",
		Enabled:     false,
		ServiceName: "test",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, shutdown(ctx))
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address; nothing is exported before shutdown.
	shutdown, err := otel.Setup(context.Background(), config.OTelConfig{
		Endpoint:    "http://192.0.2.1:4318",
		Enabled:     true,
		ServiceName: "test",
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
