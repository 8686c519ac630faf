package models

// ProgressSnapshot is the normalized view of a monitored step's remote
// progress. All free-form fields are optional; absence must not break
// rendering.
type ProgressSnapshot struct {
	TotalItems        int    `json:"total_items"`
	ProcessedItems    int    `json:"processed_items"`
	CurrentItemName   string `json:"current_item_name,omitempty"`
	CurrentItemStatus string `json:"current_item_status,omitempty"`
	Percent           int    `json:"percent,omitempty"`
	Rate              string `json:"rate,omitempty"`
	BytesTransferred  string `json:"bytes_transferred,omitempty"`
	BytesTotal        string `json:"bytes_total,omitempty"`
	Elapsed           string `json:"elapsed,omitempty"`
	ETA               string `json:"eta,omitempty"`

	// VisibleWindow is the bounded rolling tasklist: recent done items, the
	// running item, and roll-up entries for everything collapsed out of view.
	VisibleWindow []WindowEntry `json:"visible_window"`
}

// WindowEntryStatus is the display status of one window slot.
type WindowEntryStatus string

const (
	WindowEntryDone    WindowEntryStatus = "done"
	WindowEntryFailed  WindowEntryStatus = "failed"
	WindowEntryRunning WindowEntryStatus = "running"
	WindowEntryPending WindowEntryStatus = "pending"
)

// WindowEntry is one slot of the visible window. Rollup entries represent
// several collapsed items; Count carries how many.
type WindowEntry struct {
	Name    string            `json:"name"`
	Status  WindowEntryStatus `json:"status"`
	Rollup  bool              `json:"rollup,omitempty"`
	Count   int               `json:"count,omitempty"`
	Percent int               `json:"percent,omitempty"`
	Rate    string            `json:"rate,omitempty"`
}
