package progress

import (
	"fmt"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
)

// DefaultWindowSize bounds how many recently-touched items stay individually
// visible before older done items collapse into a roll-up entry.
const DefaultWindowSize = 4

// BuildWindow computes the visible window for an event sequence. The layout
// is: an optional leading "N others (done X/N)" roll-up, the most recent done
// items, the running item carrying the live partial fields, and a trailing
// "M others (pending)" roll-up for items that have not started. The result is
// fully determined by its inputs.
func BuildWindow(events []ItemEvent, partial Partial, totalItems, windowSize int) []models.WindowEntry {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	done, running := partition(events)

	hasRunning := 0
	if running != nil {
		hasRunning = 1
	}

	window := make([]models.WindowEntry, 0, windowSize+1)

	// Collapse the oldest done items once they exceed the window budget. One
	// slot is reserved for the roll-up itself, one for the running item.
	doneBudget := windowSize - hasRunning - 1
	if doneBudget < 0 {
		doneBudget = 0
	}

	visible := done

	if len(done) > doneBudget {
		collapsed := done[:len(done)-doneBudget]
		visible = done[len(done)-doneBudget:]

		successes := 0

		for _, ev := range collapsed {
			if ev.Status == ItemSuccess {
				successes++
			}
		}

		window = append(window, models.WindowEntry{
			Name:   fmt.Sprintf("%d others (done %d/%d)", len(collapsed), successes, len(collapsed)),
			Status: models.WindowEntryDone,
			Rollup: true,
			Count:  len(collapsed),
		})
	}

	for _, ev := range visible {
		entry := models.WindowEntry{Name: ev.Name, Status: models.WindowEntryDone}
		if ev.Status == ItemFailed {
			entry.Status = models.WindowEntryFailed
		}

		window = append(window, entry)
	}

	if running != nil {
		window = append(window, models.WindowEntry{
			Name:    running.Name,
			Status:  models.WindowEntryRunning,
			Percent: partial.Percent,
			Rate:    partial.Rate,
		})
	}

	if pending := totalItems - len(done) - hasRunning; pending > 0 {
		window = append(window, models.WindowEntry{
			Name:   fmt.Sprintf("%d others (pending)", pending),
			Status: models.WindowEntryPending,
			Rollup: true,
			Count:  pending,
		})
	}

	return window
}

// partition splits events into terminal items (original order) and the single
// running item. Remote operations process items sequentially, so an item
// superseded by a later start is assumed finished even if its terminal line
// never arrived.
func partition(events []ItemEvent) ([]ItemEvent, *ItemEvent) {
	lastOpen := -1

	for i, ev := range events {
		if ev.Status == ItemRunning {
			lastOpen = i
		}
	}

	done := make([]ItemEvent, 0, len(events))

	var running *ItemEvent

	for i := range events {
		ev := events[i]

		if i == lastOpen {
			running = &ev

			continue
		}

		if ev.Status == ItemRunning {
			ev.Status = ItemSuccess
		}

		done = append(done, ev)
	}

	return done, running
}
