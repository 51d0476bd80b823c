// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resource emits resource events for completed requests and for
// resources loaded by the page.
package resource

import (
	"net/url"
	"path"
	"strings"

	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/collection"
	"github.com/ManuGH/rumkit/internal/lifecycle"
	"github.com/ManuGH/rumkit/internal/observable"
	"github.com/ManuGH/rumkit/internal/rumevent"
	"github.com/ManuGH/rumkit/internal/timeutil"
)

// Resource kinds derived from timeline entries.
const (
	KindXHR   = "xhr"
	KindFetch = "fetch"
	KindJS    = "js"
	KindCSS   = "css"
	KindImage = "image"
	KindFont  = "font"
	KindMedia = "media"
	KindOther = "other"
)

// Collector owns the resource subscriptions.
type Collector struct {
	subs []observable.Subscription
}

// Start subscribes to completed requests and to resource timeline entries.
// Timeline entries of XHR and fetch requests are skipped: those requests are
// reported from their completion instead.
func Start(bus *lifecycle.Bus, clock *timeutil.Clock) *Collector {
	c := &Collector{}
	c.subs = append(c.subs,
		lifecycle.Subscribe(bus, lifecycle.RequestCompleted, func(r lifecycle.RequestCompleteEvent) {
			collection.Emit(bus, fromRequest(clock, r))
		}),
		lifecycle.Subscribe(bus, lifecycle.PerformanceEntryCollected, func(e browser.PerformanceEntry) {
			if e.EntryType != browser.EntryResource {
				return
			}
			kind := Kind(e)
			if kind == KindXHR || kind == KindFetch {
				return
			}
			collection.Emit(bus, fromEntry(clock, e, kind))
		}),
	)
	return c
}

// Stop removes the collector's subscriptions.
func (c *Collector) Stop() {
	for _, s := range c.subs {
		s.Unsubscribe()
	}
}

func fromRequest(clock *timeutil.Clock, r lifecycle.RequestCompleteEvent) rumevent.Collected {
	ev := rumevent.ResourceEvent{
		Date: clock.TimeStamp(r.StartTime),
		Type: rumevent.TypeResource,
		Resource: rumevent.ResourcePayload{
			Type:       r.Type,
			Method:     r.Method,
			URL:        r.URL,
			StatusCode: r.Status,
			Duration:   timeutil.ToServerDuration(r.Duration),
		},
	}
	if r.TraceID != "" {
		ev.DD = &rumevent.ResourceInternal{TraceID: r.TraceID, SpanID: r.SpanID}
	}
	return rumevent.Collected{RawEvent: ev, StartTime: r.StartTime}
}

func fromEntry(clock *timeutil.Clock, e browser.PerformanceEntry, kind string) rumevent.Collected {
	return rumevent.Collected{
		RawEvent: rumevent.ResourceEvent{
			Date: clock.TimeStamp(e.StartTime),
			Type: rumevent.TypeResource,
			Resource: rumevent.ResourcePayload{
				Type:     kind,
				URL:      e.Name,
				Duration: timeutil.ToServerDuration(e.Duration),
			},
		},
		StartTime: e.StartTime,
	}
}

var extensionKinds = map[string]string{
	".js":    KindJS,
	".css":   KindCSS,
	".png":   KindImage,
	".jpg":   KindImage,
	".jpeg":  KindImage,
	".gif":   KindImage,
	".svg":   KindImage,
	".webp":  KindImage,
	".ico":   KindImage,
	".woff":  KindFont,
	".woff2": KindFont,
	".ttf":   KindFont,
	".otf":   KindFont,
	".eot":   KindFont,
	".mp4":   KindMedia,
	".webm":  KindMedia,
	".mp3":   KindMedia,
	".ogg":   KindMedia,
}

// Kind classifies a resource entry by initiator, then by URL extension.
func Kind(e browser.PerformanceEntry) string {
	switch e.InitiatorType {
	case "xmlhttprequest":
		return KindXHR
	case "fetch":
		return KindFetch
	case "script":
		return KindJS
	case "img", "image":
		return KindImage
	case "video", "audio":
		return KindMedia
	}
	u, err := url.Parse(e.Name)
	if err != nil {
		return KindOther
	}
	if k, ok := extensionKinds[strings.ToLower(path.Ext(u.Path))]; ok {
		return k
	}
	return KindOther
}
