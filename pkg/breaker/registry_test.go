package breaker

import (
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tc.com/price-oracle/pkg/logging"
)

func newTestRegistry(threshold uint32, openDuration time.Duration) *Registry {
	return NewRegistry(Config{
		FailureThreshold: threshold,
		OpenDuration:     openDuration,
	}, logging.NewNoopLogger())
}

func reportFailures(t *testing.T, r *Registry, name string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		done, err := r.Allow(name)
		require.NoError(t, err)
		done(false)
	}
}

func TestRegistry_StartsClosed(t *testing.T) {
	r := newTestRegistry(3, time.Minute)
	r.Register("binance")

	state, err := r.State("binance")
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, state)

	done, err := r.Allow("binance")
	require.NoError(t, err)
	done(true)
}

func TestRegistry_TripsAfterConsecutiveFailures(t *testing.T) {
	r := newTestRegistry(3, time.Minute)
	r.Register("binance")

	reportFailures(t, r, "binance", 3)

	state, err := r.State("binance")
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateOpen, state)

	// Open breaker rejects calls outright.
	_, err = r.Allow("binance")
	assert.Error(t, err)
}

func TestRegistry_SuccessResetsFailureStreak(t *testing.T) {
	r := newTestRegistry(3, time.Minute)
	r.Register("binance")

	reportFailures(t, r, "binance", 2)

	done, err := r.Allow("binance")
	require.NoError(t, err)
	done(true)

	// The streak restarted, two more failures stay under the threshold.
	reportFailures(t, r, "binance", 2)

	state, err := r.State("binance")
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, state)
}

func TestRegistry_HalfOpenSuccessCloses(t *testing.T) {
	r := newTestRegistry(2, 20*time.Millisecond)
	r.Register("binance")

	reportFailures(t, r, "binance", 2)

	time.Sleep(30 * time.Millisecond)

	// First call after the open period is the half-open trial.
	done, err := r.Allow("binance")
	require.NoError(t, err)
	done(true)

	state, err := r.State("binance")
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, state)
}

func TestRegistry_HalfOpenFailureReopens(t *testing.T) {
	r := newTestRegistry(2, 20*time.Millisecond)
	r.Register("binance")

	reportFailures(t, r, "binance", 2)

	time.Sleep(30 * time.Millisecond)

	done, err := r.Allow("binance")
	require.NoError(t, err)
	done(false)

	state, err := r.State("binance")
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateOpen, state)
}

func TestRegistry_HalfOpenAllowsSingleTrial(t *testing.T) {
	r := newTestRegistry(2, 20*time.Millisecond)
	r.Register("binance")

	reportFailures(t, r, "binance", 2)

	time.Sleep(30 * time.Millisecond)

	_, err := r.Allow("binance")
	require.NoError(t, err)

	// The trial slot is taken until its outcome is reported.
	_, err = r.Allow("binance")
	assert.Error(t, err)
}

func TestRegistry_Health(t *testing.T) {
	r := newTestRegistry(2, time.Minute)
	r.Register("good")
	r.Register("bad")

	reportFailures(t, r, "bad", 2)

	health := r.Health()
	assert.True(t, health["good"])
	assert.False(t, health["bad"])
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := newTestRegistry(2, time.Minute)
	r.Register("binance")

	reportFailures(t, r, "binance", 2)

	// Re-registering must not reset breaker history.
	r.Register("binance")

	state, err := r.State("binance")
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateOpen, state)
}

func TestRegistry_RemoveAndUnknown(t *testing.T) {
	r := newTestRegistry(2, time.Minute)
	r.Register("binance")
	r.Remove("binance")

	_, err := r.Allow("binance")
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = r.State("nope")
	assert.ErrorIs(t, err, ErrNotRegistered)
}
