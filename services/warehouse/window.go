// Copyright (C) 2026 Helios Grid Analytics (engineering@heliosgrid.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package warehouse

import (
	"fmt"
	"time"
)

// dateLayout is the wire format for start_date/end_date parameters.
const dateLayout = "2006-01-02"

// Window is a half-open query interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a validated window.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// ParseWindow parses start_date/end_date query parameters. The end date
// is inclusive on the wire, so the window extends to the start of the
// following day. Empty strings select the current month to date.
func ParseWindow(startStr, endStr string, now time.Time) (Window, error) {
	if startStr == "" && endStr == "" {
		return CurrentMonth(now), nil
	}
	if startStr == "" || endStr == "" {
		return Window{}, fmt.Errorf("start_date and end_date must be provided together")
	}

	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start_date %q: %w", startStr, err)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end_date %q: %w", endStr, err)
	}

	return NewWindow(start, end.AddDate(0, 0, 1))
}

// CurrentMonth returns the window from the first of now's month to now.
func CurrentMonth(now time.Time) Window {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Window{Start: start, End: now}
}

// Validate checks the window is well-formed.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window bounds must be set")
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("window end %s must be after start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// PreviousMonth returns the full calendar month before the month
// containing Start. Used for the fallback retry when the requested
// window has no valid telemetry.
func (w Window) PreviousMonth() Window {
	monthStart := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, w.Start.Location())
	return Window{
		Start: monthStart.AddDate(0, -1, 0),
		End:   monthStart,
	}
}

// Month returns the "YYYY-MM" label of the month containing Start.
// Responses carry it as data_month so clients can tell which month
// was actually served after a fallback.
func (w Window) Month() string {
	return w.Start.Format("2006-01")
}
