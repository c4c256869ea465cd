package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, Exponential, p.Mode)
	assert.Equal(t, time.Second, p.Initial)
	assert.Equal(t, 30*time.Second, p.Max)
	assert.False(t, p.Exhausted(1000))
}

func TestNewPolicy_ClampsInitial(t *testing.T) {
	p := NewPolicy(Fixed, 5*time.Second, 2*time.Second, 5)
	assert.Equal(t, 2*time.Second, p.Initial)
	assert.Equal(t, Fixed, p.Mode)
	assert.True(t, p.Exhausted(6))
	assert.False(t, p.Exhausted(5))
}

func TestNewPolicy_UnknownModeKeepsDefault(t *testing.T) {
	assert.Equal(t, Exponential, NewPolicy(ParseMode("zigzag"), 0, 0, 0).Mode)
	assert.Equal(t, Linear, NewPolicy(ParseMode(" Linear "), 0, 0, 0).Mode)
}

func TestDelay(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name   string
		policy Policy
		want   []time.Duration
	}{
		{"fixed", NewPolicy(Fixed, 100*ms, 500*ms, 3), []time.Duration{100 * ms, 100 * ms, 100 * ms}},
		{"linear", NewPolicy(Linear, 100*ms, 250*ms, 5), []time.Duration{100 * ms, 200 * ms, 250 * ms, 250 * ms}},
		{"exponential", NewPolicy(Exponential, 50*ms, 160*ms, 5), []time.Duration{50 * ms, 100 * ms, 160 * ms, 160 * ms}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				assert.Equal(t, want, tt.policy.Delay(i+1), "retry %d", i+1)
			}
		})
	}

	p := DefaultPolicy()
	assert.Zero(t, p.Delay(0))
	assert.Zero(t, p.Delay(-1))
	assert.Equal(t, p.Max, p.Delay(80), "large exponents must not overflow")
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())
	require.Error(t, Policy{}.Validate())
}

func TestWait_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := NewPolicy(Fixed, time.Hour, time.Hour, 1).Wait(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
