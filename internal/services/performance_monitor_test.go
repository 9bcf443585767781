package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformanceMonitorStats(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	pm := NewPerformanceMonitor(logger)

	stats := pm.Stats(context.Background())
	require.NotNil(t, stats)
	assert.Positive(t, stats.Goroutines)
	assert.GreaterOrEqual(t, stats.UptimeSeconds, int64(0))
}
