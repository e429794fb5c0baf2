package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/config"
	"github.com/rtbexchange/router/metrics"
)

func TestSlowModeActivatesAfterToleranceAndRecoversImmediately(t *testing.T) {
	m := metrics.NewShardMetrics()
	sm := NewSlowMode(100*time.Millisecond, config.Amount{Micros: 10000}, m)

	now := time.Now()
	sm.Observe(false, now)
	require.False(t, sm.Active(), "must not activate before tolerance elapses")

	sm.Observe(false, now.Add(50*time.Millisecond))
	require.False(t, sm.Active())

	sm.Observe(false, now.Add(150*time.Millisecond))
	require.True(t, sm.Active())

	sm.Observe(true, now.Add(160*time.Millisecond))
	require.False(t, sm.Active(), "a single healthy observation recovers immediately")
}

func TestSlowModeAdmitCapsSpendWithinWindow(t *testing.T) {
	m := metrics.NewShardMetrics()
	sm := NewSlowMode(0, config.Amount{Micros: 10000}, m)

	now := time.Now()
	sm.Observe(false, now)
	sm.Observe(false, now.Add(time.Millisecond)) // tolerance 0, active immediately
	require.True(t, sm.Active())

	require.True(t, sm.Admit(6000, now))
	sm.RecordSpend(6000, now)
	require.False(t, sm.Admit(6000, now), "second 6000 would exceed the 10000 window limit")
	require.True(t, sm.Admit(3000, now))
}

func TestSlowModeAdmitAlwaysTrueWhenInactive(t *testing.T) {
	m := metrics.NewShardMetrics()
	sm := NewSlowMode(time.Minute, config.Amount{Micros: 1}, m)
	require.True(t, sm.Admit(1_000_000, time.Now()))
}

func TestSlowModeWindowResetsAfterOneSecond(t *testing.T) {
	m := metrics.NewShardMetrics()
	sm := NewSlowMode(0, config.Amount{Micros: 10000}, m)

	now := time.Now()
	sm.Observe(false, now)
	sm.Observe(false, now.Add(time.Millisecond))

	sm.RecordSpend(9000, now)
	require.False(t, sm.Admit(5000, now))
	require.True(t, sm.Admit(5000, now.Add(2*time.Second)), "spend resets once the one-second window elapses")
}
