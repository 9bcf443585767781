package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/services"
)

func TestSourceGuardConfigMapsAllFields(t *testing.T) {
	src := config.SourcesConfig{
		MaxConcurrent:    4,
		MaxRetries:       5,
		BackoffBase:      "2s",
		BackoffCap:       "45s",
		FailureThreshold: 7,
		OpenTimeout:      "90s",
	}

	got := sourceGuardConfig(src)

	assert.Equal(t, 4, got.MaxConcurrent)
	assert.Equal(t, 5, got.MaxRetries)
	assert.Equal(t, 2*time.Second, got.BackoffBase)
	assert.Equal(t, 45*time.Second, got.BackoffCap)
	assert.Equal(t, 7, got.FailureThreshold)
	assert.Equal(t, 90*time.Second, got.OpenTimeout)
}

func TestSourceGuardConfigKeepsDefaultsWhenUnset(t *testing.T) {
	def := services.DefaultSourceGuardConfig()

	got := sourceGuardConfig(config.SourcesConfig{})

	assert.Equal(t, def.BackoffBase, got.BackoffBase)
	assert.Equal(t, def.BackoffCap, got.BackoffCap)
	assert.Equal(t, def.OpenTimeout, got.OpenTimeout)
	assert.Equal(t, def.BackoffMultiplier, got.BackoffMultiplier)
	assert.Equal(t, def.JitterFraction, got.JitterFraction)
}
