package utilities

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIDUniqueUnderConcurrency(t *testing.T) {
	const workers, perWorker = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, NextID())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestNewNodeFallsBackOnInvalidID(t *testing.T) {
	n := newNode(1 << 20)
	require.NotNil(t, n)
	assert.Positive(t, n.Generate().Int64())
}

func TestNewKSUID(t *testing.T) {
	a, b := NewKSUID(), NewKSUID()
	assert.Len(t, a, 27)
	assert.NotEqual(t, a, b)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, "warn", levelFromString("warning").String())
	assert.Equal(t, "info", levelFromString("bogus").String())
}
