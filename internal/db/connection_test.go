package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolSettingsDefaults(t *testing.T) {
	got := PoolSettings{}.withDefaults()
	assert.Equal(t, int32(10), got.MaxConns)
	assert.Equal(t, time.Hour, got.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, got.MaxConnIdleTime)
}

func TestPoolSettingsKeepsConfiguredValues(t *testing.T) {
	got := PoolSettings{
		MaxConns:        4,
		MaxConnLifetime: 10 * time.Minute,
		MaxConnIdleTime: 2 * time.Minute,
	}.withDefaults()

	assert.Equal(t, int32(4), got.MaxConns)
	assert.Equal(t, 10*time.Minute, got.MaxConnLifetime)
	assert.Equal(t, 2*time.Minute, got.MaxConnIdleTime)
}

func TestPoolSettingsBackfillsPartially(t *testing.T) {
	got := PoolSettings{MaxConns: 4}.withDefaults()
	assert.Equal(t, int32(4), got.MaxConns)
	assert.Equal(t, time.Hour, got.MaxConnLifetime)
}
