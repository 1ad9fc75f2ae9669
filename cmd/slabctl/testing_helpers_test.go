package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/slab"
	"github.com/joshuapare/slabkit/slab/view"
)

// fixture describes the store built by newFixture.
type fixture struct {
	path    string
	live    map[int64][]byte
	freed   int64
	reserve uint64
}

var sizedNoop = slab.CreateFuncs[int64, noop]{
	SizeFn:   func(n int64) int64 { return n },
	CreateFn: func(int64, *view.Bounded) (noop, error) { return noop{}, nil },
}

// newFixture creates a small store with three live chunks and one freed
// chunk, then closes it so commands can open it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	resetFlags()

	fx := &fixture{
		path:    filepath.Join(t.TempDir(), "test.slab"),
		live:    map[int64][]byte{},
		reserve: 7,
	}
	opts := slab.DefaultOptions
	opts.SegmentSize = 64 << 10
	a, err := slab.Create[noop](fx.path, opts)
	require.NoError(t, err)

	for _, payload := range [][]byte{
		[]byte("alpha"),
		bytes.Repeat([]byte("b"), 700),
		bytes.Repeat([]byte("c"), 5000),
	} {
		fp, err := slab.Allocate(a, int64(len(payload)), sizedNoop)
		require.NoError(t, err)
		_, err = slab.Execute(a, fp, openNoop, slab.TxFunc[noop, int](
			func(_ noop, v *view.Bounded, _ sync.Locker) (int, error) {
				return v.Write(payload)
			}))
		require.NoError(t, err)
		fx.live[fp] = payload
	}

	fx.freed, err = slab.Allocate(a, int64(300), sizedNoop)
	require.NoError(t, err)
	require.NoError(t, a.Remove(fx.freed))
	require.NoError(t, a.SetReferenceNumber(fx.reserve))
	require.NoError(t, a.Close())
	return fx
}

func resetFlags() {
	verbose = false
	quiet = false
	jsonOut = false
	segmentSize = "64KiB"
	verifyWorkers = 4
	dumpLimit = 0
	dumpFree = true
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), fnErr
}

// decodeJSON unmarshals command output into v.
func decodeJSON(t *testing.T, output string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(output), v), "output: %s", output)
}
