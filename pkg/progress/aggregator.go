package progress

import (
	"log/slog"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
)

// Aggregator folds successive progress document reads into monotonic
// snapshots for one step. Processed-item counts never decrease across folds:
// a poll that reads a truncated or garbled document keeps the previous
// snapshot instead of going backwards.
type Aggregator struct {
	totalItems int
	windowSize int
	logger     *slog.Logger
	prev       *models.ProgressSnapshot
}

// NewAggregator creates an aggregator for a step expected to process
// totalItems sub-items.
func NewAggregator(totalItems, windowSize int, logger *slog.Logger) *Aggregator {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	return &Aggregator{
		totalItems: totalItems,
		windowSize: windowSize,
		logger:     logger.With("module", "progress_aggregator"),
	}
}

// Fold parses one raw document read and returns the current snapshot. The
// returned snapshot is a fresh value on every call; callers may retain it.
func (a *Aggregator) Fold(raw string) *models.ProgressSnapshot {
	report := Parse(raw)

	total := a.totalItems
	if report.TotalItems > 0 {
		total = report.TotalItems
	}

	done, running := partition(report.Events)

	processed := len(done)
	if running != nil {
		processed++
	}

	if a.prev != nil && processed < a.prev.ProcessedItems {
		a.logger.Debug("Progress document went backwards, keeping previous snapshot",
			"previous", a.prev.ProcessedItems, "observed", processed)

		kept := *a.prev
		kept.VisibleWindow = append([]models.WindowEntry(nil), a.prev.VisibleWindow...)

		return &kept
	}

	snapshot := &models.ProgressSnapshot{
		TotalItems:       total,
		ProcessedItems:   processed,
		Percent:          report.Partial.Percent,
		Rate:             report.Partial.Rate,
		BytesTransferred: report.Partial.BytesTransferred,
		BytesTotal:       report.Partial.BytesTotal,
		Elapsed:          report.Partial.Elapsed,
		ETA:              report.Partial.ETA,
		VisibleWindow:    BuildWindow(report.Events, report.Partial, total, a.windowSize),
	}

	if running != nil {
		snapshot.CurrentItemName = running.Name
		snapshot.CurrentItemStatus = string(running.Status)
	} else if len(done) > 0 {
		last := done[len(done)-1]
		snapshot.CurrentItemName = last.Name
		snapshot.CurrentItemStatus = string(last.Status)
	}

	a.prev = snapshot

	return snapshot
}
