package progress

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestAggregator_Fold(t *testing.T) {
	agg := NewAggregator(34, 4, testLogger())

	snapshot := agg.Fold(`SUCCESS a
SUCCESS b
SUCCESS c
SUCCESS d
RUNNING ComfyUI-Manager
percent=37 rate=2.1MiB/s
`)

	assert.Equal(t, 34, snapshot.TotalItems)
	assert.Equal(t, 5, snapshot.ProcessedItems)
	assert.Equal(t, "ComfyUI-Manager", snapshot.CurrentItemName)
	assert.Equal(t, "running", snapshot.CurrentItemStatus)
	assert.Equal(t, 37, snapshot.Percent)
	require.Len(t, snapshot.VisibleWindow, 5)
	assert.Equal(t, "29 others (pending)", snapshot.VisibleWindow[4].Name)
}

func TestAggregator_MonotonicOnTruncatedRead(t *testing.T) {
	agg := NewAggregator(10, 4, testLogger())

	full := agg.Fold("SUCCESS a\nSUCCESS b\nRUNNING c\n")
	assert.Equal(t, 3, full.ProcessedItems)

	// A poll that races a document rewrite may read fewer events; the
	// previous snapshot is retained.
	retained := agg.Fold("SUCCESS a\n")
	assert.Equal(t, full, retained)

	// Every fold returns a fresh value even on the retained branch, so a
	// caller mutating one snapshot cannot corrupt a later one.
	assert.NotSame(t, full, retained)
	retained.ProcessedItems = 99
	retained.VisibleWindow[0].Name = "mutated"

	unchanged := agg.Fold("SUCCESS a\n")
	assert.Equal(t, 3, unchanged.ProcessedItems)
	assert.NotEqual(t, "mutated", unchanged.VisibleWindow[0].Name)

	// Progress resumes once the document catches back up.
	resumed := agg.Fold("SUCCESS a\nSUCCESS b\nSUCCESS c\nRUNNING d\n")
	assert.Equal(t, 4, resumed.ProcessedItems)
	assert.Equal(t, "d", resumed.CurrentItemName)
}

func TestAggregator_DocumentDeclaredTotalWins(t *testing.T) {
	agg := NewAggregator(0, 4, testLogger())

	snapshot := agg.Fold("TOTAL 12\nRUNNING a\n")

	assert.Equal(t, 12, snapshot.TotalItems)
	assert.Equal(t, 1, snapshot.ProcessedItems)
}

func TestAggregator_NoRunningItemUsesLastDone(t *testing.T) {
	agg := NewAggregator(2, 4, testLogger())

	snapshot := agg.Fold("SUCCESS a\nSUCCESS b\n")

	assert.Equal(t, 2, snapshot.ProcessedItems)
	assert.Equal(t, "b", snapshot.CurrentItemName)
	assert.Equal(t, "success", snapshot.CurrentItemStatus)
}
