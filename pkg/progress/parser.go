// Package progress parses remote progress documents and folds them into a
// bounded rolling window suitable for display.
package progress

import (
	"regexp"
	"strconv"
	"strings"
)

// ItemStatus is the state of one sub-item as reported by the remote operation.
type ItemStatus string

const (
	ItemRunning ItemStatus = "running"
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
)

// ItemEvent is one per-item event from the progress document. Events keep the
// order in which items first appeared; a later event for the same name updates
// its status.
type ItemEvent struct {
	Name   string
	Status ItemStatus
}

// Partial carries the live free-text progress fields for whichever item is
// currently running. Every field is optional.
type Partial struct {
	Percent          int
	Rate             string
	BytesTransferred string
	BytesTotal       string
	Elapsed          string
	ETA              string
}

// Report is the normalized result of parsing one progress document read.
type Report struct {
	Events  []ItemEvent
	Partial Partial

	// TotalItems is set when the document declares its own item count via a
	// TOTAL line; zero otherwise.
	TotalItems int
}

var (
	// git clone output, e.g. "Receiving objects:  42% (123/290), 4.52 MiB | 2.10 MiB/s"
	cloneProgressRe = regexp.MustCompile(`^(?:remote: )?(?:Receiving|Compressing|Counting) objects:\s+(\d+)%(?:\s+\(\d+/\d+\))?(?:,\s+([\d.]+ [KMGT]?i?B))?(?:\s+\|\s+([\d.]+ [KMGT]?i?B/s))?`)
	cloningIntoRe   = regexp.MustCompile(`^Cloning into '(?:.*/)?([^/']+)'`)
	installedRe     = regexp.MustCompile(`^Installed\s+(.+)$`)
)

// Parse reads the raw text of a progress document. Two line families are
// understood: item events ("RUNNING <name>", "SUCCESS <name>", "FAILED
// <name>", plus the git-clone variants "Cloning into '<name>'" and "Installed
// <name>") and partial-progress lines for the running item (git clone
// counters or "key=value" fields). Unrecognized lines are ignored, so a
// half-written document never fails the poll.
func Parse(raw string) Report {
	report := Report{}
	order := make([]string, 0)
	status := make(map[string]ItemStatus)

	record := func(name string, st ItemStatus) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}

		if _, seen := status[name]; !seen {
			order = append(order, name)
		}

		status[name] = st
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "TOTAL "):
			if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "TOTAL "))); err == nil {
				report.TotalItems = n
			}

		case strings.HasPrefix(line, "RUNNING "):
			record(strings.TrimPrefix(line, "RUNNING "), ItemRunning)

		case strings.HasPrefix(line, "SUCCESS "):
			record(strings.TrimPrefix(line, "SUCCESS "), ItemSuccess)

		case strings.HasPrefix(line, "FAILED "):
			record(strings.TrimPrefix(line, "FAILED "), ItemFailed)

		default:
			if m := cloningIntoRe.FindStringSubmatch(line); m != nil {
				record(m[1], ItemRunning)

				continue
			}

			if m := installedRe.FindStringSubmatch(line); m != nil {
				record(m[1], ItemSuccess)

				continue
			}

			if m := cloneProgressRe.FindStringSubmatch(line); m != nil {
				if pct, err := strconv.Atoi(m[1]); err == nil {
					report.Partial.Percent = pct
				}

				if m[2] != "" {
					report.Partial.BytesTransferred = m[2]
				}

				if m[3] != "" {
					report.Partial.Rate = m[3]
				}

				continue
			}

			parseFields(line, &report.Partial)
		}
	}

	report.Events = make([]ItemEvent, 0, len(order))
	for _, name := range order {
		report.Events = append(report.Events, ItemEvent{Name: name, Status: status[name]})
	}

	return report
}

// parseFields handles "key=value" partial-progress lines, e.g.
// "percent=42 rate=18.4MB/s bytes=4.5GiB/12.0GiB elapsed=4m10s eta=9m".
func parseFields(line string, partial *Partial) {
	for _, field := range strings.Fields(line) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}

		switch key {
		case "percent":
			if pct, err := strconv.Atoi(strings.TrimSuffix(value, "%")); err == nil {
				partial.Percent = pct
			}
		case "rate":
			partial.Rate = value
		case "bytes":
			done, total, ok := strings.Cut(value, "/")
			partial.BytesTransferred = done

			if ok {
				partial.BytesTotal = total
			}
		case "elapsed":
			partial.Elapsed = value
		case "eta":
			partial.ETA = value
		}
	}
}
