package dirty

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesceMergesAdjacentPages(t *testing.T) {
	tr := NewTracker(4096)
	tr.Add(10, 20)      // page 0
	tr.Add(4000, 200)   // pages 0-1
	tr.Add(16384, 1)    // page 4
	tr.Add(8192, 0)     // ignored
	tr.Add(12288, 4096) // page 3, adjacent to page 4

	got := tr.Take()
	require.Equal(t, []Range{
		{Off: 0, Len: 8192},
		{Off: 12288, Len: 8192},
	}, got)
	assert.Nil(t, tr.Take(), "take clears")
}

func TestTakeClears(t *testing.T) {
	tr := NewTracker(0)
	tr.Add(0, 1)
	rs := tr.Take()
	require.Len(t, rs, 1)
	assert.Equal(t, int64(standardPageSize), rs[0].Len)
	assert.Nil(t, tr.Take())

	tr.Restore(rs)
	assert.Equal(t, rs, tr.Take(), "restored ranges are flushed on retry")
	assert.Nil(t, tr.Take())
}

func TestConcurrentAdd(t *testing.T) {
	tr := NewTracker(4096)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.Add(int64(g*4096), 8)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, []Range{{Off: 0, Len: 8 * 4096}}, tr.Take())
}
