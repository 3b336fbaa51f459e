package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_StartsAtZero(t *testing.T) {
	clock := NewStepClock()
	assert.Equal(t, int64(0), clock.Current())
}

func TestStepClock_TickIsMonotonic(t *testing.T) {
	clock := NewStepClock()

	assert.Equal(t, int64(1), clock.Tick())
	assert.Equal(t, int64(2), clock.Tick())
	assert.Equal(t, int64(3), clock.Tick())
	assert.Equal(t, int64(3), clock.Current())
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock()
	clock.Tick()
	clock.Tick()

	clock.Reset()

	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Tick())
}

func TestStepClock_Concurrent(t *testing.T) {
	clock := NewStepClock()
	const workers, ticks = 8, 100

	seen := make([][]int64, workers)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range ticks {
				seen[w] = append(seen[w], clock.Tick())
			}
		}()
	}
	wg.Wait()

	unique := make(map[int64]bool)
	for _, s := range seen {
		for _, v := range s {
			assert.False(t, unique[v], "step %d handed out twice", v)
			unique[v] = true
		}
	}
	assert.Len(t, unique, workers*ticks)
	assert.Equal(t, int64(workers*ticks), clock.Current())
}
