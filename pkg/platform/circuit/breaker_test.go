package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("recalc-publish", WithFailureThreshold(3))
	assert.Equal(t, "recalc-publish", b.Name())

	for i := 0; i < 2; i++ {
		fallback, change := b.RecordFailure()
		assert.False(t, fallback)
		assert.Equal(t, StateChange{}, change)
	}

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())

	fallback, change = b.RecordFailure()
	assert.True(t, fallback, "an open circuit keeps routing to the fallback")
	assert.False(t, change.Opened, "opening is reported once")
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := New("recalc-publish", WithFailureThreshold(2))

	b.RecordFailure()
	primary, _ := b.RecordSuccess()
	assert.True(t, primary)

	fallback, _ := b.RecordFailure()
	assert.False(t, fallback, "streak restarted after the success")
	assert.False(t, b.IsOpen())
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	b := New("recalc-publish", WithFailureThreshold(1), WithSuccessThreshold(2))
	_, change := b.RecordFailure()
	require.True(t, change.Opened)

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestFailureWhileRecoveringRestartsRecovery(t *testing.T) {
	b := New("recalc-publish", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordFailure()
	primary, _ := b.RecordSuccess()
	assert.False(t, primary, "one success after a relapse is not enough")

	primary, change := b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
}

func TestNonPositiveThresholdsKeepDefaults(t *testing.T) {
	b := New("x", WithFailureThreshold(0), WithSuccessThreshold(-1))
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen(), "default threshold is five failures")
}

func TestReset(t *testing.T) {
	b := New("x", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	fallback, _ := b.RecordFailure()
	assert.True(t, fallback, "counters start fresh after a reset")
}

func TestConcurrentRecordingOpensOnce(t *testing.T) {
	b := New("x", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, opened)
	assert.True(t, b.IsOpen())
}
