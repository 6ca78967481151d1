package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultScheduleDoubles(t *testing.T) {
	p := Default()

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}

	for i, w := range want {
		got, ok := p.Next(i + 1)
		assert.True(t, ok)
		assert.Equal(t, w, got)
	}
}

func TestNextCapsAtMaxDelay(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 10 * time.Second, MaxAttempts: 10}

	got, ok := p.Next(6) // 1<<5 = 32s, capped
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, got)
}

func TestNextRejectsOutOfRangeAttempts(t *testing.T) {
	p := Default()

	_, ok := p.Next(0)
	assert.False(t, ok)

	_, ok = p.Next(6)
	assert.False(t, ok)
}

func TestExhausted(t *testing.T) {
	p := Default()

	assert.False(t, p.Exhausted(5))
	assert.True(t, p.Exhausted(6))
}
