package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestTripsAfterMaxFailures(t *testing.T) {
	cb := New(Settings{Name: "test", MaxFailures: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errBoom })
		assert.ErrorIs(t, err, errBoom)
	}

	// Tripped: the call is refused without running fn.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})

	require.Error(t, cb.Execute(func() error { return errBoom }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return errBoom }))

	// Still closed: the success in between reset the streak.
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestHalfOpenProbe(t *testing.T) {
	cb := New(Settings{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond})

	require.Error(t, cb.Execute(func() error { return errBoom }))
	require.ErrorIs(t, cb.Execute(func() error { return nil }), ErrOpen)

	time.Sleep(15 * time.Millisecond)

	// One probe is allowed through; success closes the breaker.
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(Settings{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond})

	require.Error(t, cb.Execute(func() error { return errBoom }))
	time.Sleep(15 * time.Millisecond)

	require.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrOpen)
}
