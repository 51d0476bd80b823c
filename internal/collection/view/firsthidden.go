// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package view

import (
	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/timeutil"
)

// firstHidden remembers when the page was hidden for the first time.
type firstHidden struct {
	at   timeutil.RelativeTime
	stop func()
}

func trackFirstHidden(doc *browser.Document) *firstHidden {
	fh := &firstHidden{at: timeutil.Infinite, stop: func() {}}
	if doc.VisibilityState() == browser.Hidden {
		fh.at = 0
		return fh
	}
	fh.stop = doc.AddEventListeners(
		[]string{browser.EventPageHide, browser.EventVisibilityChange},
		func(ev browser.Event) {
			if ev.Type == browser.EventPageHide || doc.VisibilityState() == browser.Hidden {
				fh.at = ev.TimeStamp
				fh.stop()
			}
		},
		false,
	)
	return fh
}

// TimeStamp is Infinite while the page has never been hidden.
func (fh *firstHidden) TimeStamp() timeutil.RelativeTime {
	return fh.at
}
