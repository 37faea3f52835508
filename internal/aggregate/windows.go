// Package aggregate maintains the hopping-window order count and revenue
// over all orders.
package aggregate

import "time"

type Window struct {
	Start time.Time
	End   time.Time
}

// HoppingWindows are Size long and start every Advance. A window stays open
// for updates until End+Grace is reached by stream time.
type HoppingWindows struct {
	Size    time.Duration
	Advance time.Duration
	Grace   time.Duration
}

// Assign returns every window [start, start+Size) containing ts, ascending
// by start. Starts are aligned to Advance. Durations are truncated to
// milliseconds; an Advance under one millisecond assigns nothing.
func (w HoppingWindows) Assign(ts time.Time) []Window {
	advance := w.Advance.Milliseconds()
	if advance <= 0 {
		return nil
	}
	ms := ts.UnixMilli()

	last := floorDiv(ms, advance) * advance
	first := floorDiv(ms-w.Size.Milliseconds(), advance)*advance + advance

	windows := make([]Window, 0, (last-first)/advance+1)
	for start := first; start <= last; start += advance {
		s := time.UnixMilli(start).UTC()
		windows = append(windows, Window{Start: s, End: s.Add(w.Size)})
	}
	return windows
}

// closed reports whether a window can no longer accept contributions.
func (w HoppingWindows) closed(win Window, streamTime time.Time) bool {
	return !win.End.Add(w.Grace).After(streamTime)
}

// retainedAfter is the latest window start that is closed at streamTime.
func (w HoppingWindows) retainedAfter(streamTime time.Time) time.Time {
	return streamTime.Add(-w.Size - w.Grace)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
