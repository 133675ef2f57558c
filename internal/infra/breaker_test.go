package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, OpenTimeout: time.Minute, Now: clock.now})
	boom := errors.New("connection refused")

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	}
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called, "open breaker must not run fn")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2})
	boom := errors.New("boom")

	_ = b.Do(func() error { return boom })
	assert.NoError(t, b.Do(func() error { return nil }))
	_ = b.Do(func() error { return boom })
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, OpenTimeout: 10 * time.Second, Now: clock.now})
	boom := errors.New("boom")

	_ = b.Do(func() error { return boom })
	assert.Equal(t, BreakerOpen, b.State())

	clock.t = clock.t.Add(11 * time.Second)
	assert.Equal(t, BreakerHalfOpen, b.State())

	// Failed probe reopens.
	_ = b.Do(func() error { return boom })
	assert.Equal(t, BreakerOpen, b.State())

	clock.t = clock.t.Add(11 * time.Second)
	assert.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}

func TestBreakerHalfOpenAdmitsOneProbe(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, OpenTimeout: 10 * time.Second, Now: clock.now})
	_ = b.Do(func() error { return errors.New("boom") })
	clock.t = clock.t.Add(11 * time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called, "only the probe runs while half-open")

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Do(func() error { return nil }))
}
