package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fireSequence(s *Scheduler, ticks int) []int {
	var fired []int
	for i := 1; i <= ticks; i++ {
		if s.Tick() {
			fired = append(fired, i)
		}
	}
	return fired
}

func TestSchedulerCadence(t *testing.T) {
	s := NewScheduler(3, 0)
	assert.Equal(t, []int{3, 6, 9}, fireSequence(s, 10))
}

func TestSchedulerEarlyFirstPublication(t *testing.T) {
	s := NewScheduler(3, 2)
	assert.Equal(t, []int{2, 5, 8}, fireSequence(s, 9))
}

func TestSchedulerFirstAtOne(t *testing.T) {
	s := NewScheduler(5, 1)
	assert.Equal(t, []int{1, 6}, fireSequence(s, 10))
}

func TestSchedulerDisabled(t *testing.T) {
	s := NewScheduler(0, 0)
	assert.Empty(t, fireSequence(s, 20))
}

func TestSchedulerReset(t *testing.T) {
	s := NewScheduler(4, 2)
	assert.Equal(t, []int{2}, fireSequence(s, 3))

	s.Reset()
	// The early first publication applies again after a reset.
	assert.Equal(t, []int{2, 6}, fireSequence(s, 7))
}

func TestSchedulerEveryOne(t *testing.T) {
	s := NewScheduler(1, 0)
	assert.Equal(t, []int{1, 2, 3}, fireSequence(s, 3))
}
