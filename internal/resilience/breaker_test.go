package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPortalDown = errors.New("municode: 503 service unavailable")

// testBreakers returns a registry whose clock the test advances.
func testBreakers(threshold int) (*PortalBreakers, *time.Time) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pb := NewPortalBreakers(BreakerConfig{Threshold: threshold, Cooldown: time.Minute})
	pb.now = func() time.Time { return now }
	return pb, &now
}

func call(b *Breaker, err error) error {
	_, got := ExecuteVal(context.Background(), b, func(context.Context) (struct{}, error) {
		return struct{}{}, err
	})
	return got
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	pb, _ := testBreakers(3)
	b := pb.Get("municode")

	for range 3 {
		require.ErrorIs(t, call(b, errPortalDown), errPortalDown)
	}
	assert.Equal(t, CircuitOpen, b.State())

	_, err := ExecuteVal(context.Background(), b, func(context.Context) (int, error) {
		t.Error("portal must not be called while the breaker is open")
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "municode")
}

func TestBreaker_PermanentAndCancelledDoNotCount(t *testing.T) {
	pb, _ := testBreakers(2)
	b := pb.Get("ecode360")

	notFound := &PermanentError{Err: errors.New("404 not found"), StatusCode: 404}
	for range 5 {
		_ = call(b, notFound)
		_ = call(b, context.Canceled)
	}
	assert.Equal(t, CircuitClosed, b.State())
	assert.Equal(t, 0, b.failures)
}

func TestBreaker_SuccessResetsRun(t *testing.T) {
	pb, _ := testBreakers(3)
	b := pb.Get("municode")

	_ = call(b, errPortalDown)
	_ = call(b, errPortalDown)
	require.NoError(t, call(b, nil))
	_ = call(b, errPortalDown)

	assert.Equal(t, CircuitClosed, b.State())
	assert.Equal(t, 1, b.failures)
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	pb, now := testBreakers(1)
	b := pb.Get("municode")

	_ = call(b, errPortalDown)
	require.Equal(t, CircuitOpen, b.State())

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, CircuitHalfOpen, b.State())

	// failed trial call reopens and restarts the cooldown
	_ = call(b, errPortalDown)
	assert.Equal(t, CircuitOpen, b.State())
	assert.ErrorIs(t, call(b, nil), ErrCircuitOpen)

	*now = now.Add(2 * time.Minute)
	require.NoError(t, call(b, nil))
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_SingleTrialInFlight(t *testing.T) {
	pb, now := testBreakers(1)
	b := pb.Get("municode")
	_ = call(b, errPortalDown)
	*now = now.Add(2 * time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := ExecuteVal(context.Background(), b, func(context.Context) (int, error) {
			close(started)
			<-release
			return 0, nil
		})
		done <- err
	}()
	<-started

	assert.ErrorIs(t, call(b, nil), ErrCircuitOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, CircuitClosed, b.State())
	assert.NoError(t, call(b, nil))
}

func TestBreaker_CancelledTrialFreesSlot(t *testing.T) {
	pb, now := testBreakers(1)
	b := pb.Get("municode")
	_ = call(b, errPortalDown)
	*now = now.Add(2 * time.Minute)

	_ = call(b, context.Canceled)
	assert.Equal(t, CircuitHalfOpen, b.State())
	require.NoError(t, call(b, nil))
	assert.Equal(t, CircuitClosed, b.State())
}

func TestPortalBreakers_Isolated(t *testing.T) {
	pb, _ := testBreakers(1)

	_ = call(pb.Get("municode"), errPortalDown)

	assert.Same(t, pb.Get("municode"), pb.Get("municode"))
	states := pb.States()
	assert.Equal(t, CircuitOpen, states["municode"])
	assert.Equal(t, CircuitClosed, pb.Get("ecode360").State())
}

func TestPortalBreakers_ConcurrentGet(t *testing.T) {
	pb := NewPortalBreakers(BreakerConfig{})
	assert.Equal(t, DefaultBreakerConfig(), pb.cfg)

	var wg sync.WaitGroup
	got := make([]*Breaker, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = pb.Get("municode")
		}(i)
	}
	wg.Wait()
	for _, b := range got {
		assert.Same(t, got[0], b)
	}
}

func TestCircuitState_String(t *testing.T) {
	for state, want := range map[CircuitState]string{
		CircuitClosed: "closed", CircuitOpen: "open", CircuitHalfOpen: "half-open", CircuitState(9): "unknown",
	} {
		assert.Equal(t, want, state.String())
	}
}
