package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/dataloom/config"
)

func TestControllerAcquireRelease(t *testing.T) {
	limits := NewLimits(1, 1)
	controller := NewController(limits)

	require.Equal(t, limits, controller.LimitsSnapshot())

	require.NoError(t, controller.AcquireRequest(context.Background()))
	controller.ReleaseRequest()

	require.NoError(t, controller.AcquireDataset(context.Background()))
	controller.ReleaseDataset()
}

func TestLimitsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Limits.MaxRowsPerOp = 42
	cfg.Limits.PreviewRowLimit = 7

	l := LimitsFromConfig(cfg)
	require.Equal(t, 42, l.MaxRowsPerOp)
	require.Equal(t, 7, l.PreviewRowLimit)
	require.Equal(t, config.DefaultMaxConcurrentRequests, l.MaxConcurrentRequests)
}
