// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package errorcollection

import (
	"strings"
	"testing"

	"github.com/ManuGH/rumkit/internal/browser"
	"github.com/ManuGH/rumkit/internal/model"
	"github.com/ManuGH/rumkit/internal/xhrproxy"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualMethods struct {
	gen map[*browser.XHR]uint64
}

func (m *manualMethods) Open(x *browser.XHR, method, rawURL string) error {
	x.MarkOpened(method, rawURL)
	return nil
}

func (m *manualMethods) Send(x *browser.XHR, _ []byte) error {
	g, err := x.MarkSent(nil)
	if err == nil {
		m.gen[x] = g
	}
	return err
}

func startNetworkTracking(t *testing.T, opts AutomaticOptions) (*browser.Platform, *manualMethods, *[]model.RawError) {
	t.Helper()
	native := &manualMethods{gen: map[*browser.XHR]uint64{}}
	p, err := browser.NewPlatform("https://app.example.com/", native)
	require.NoError(t, err)

	px := xhrproxy.Start(p, testClock(), quietMonitor())
	t.Cleanup(px.Stop)

	a := NewAutomatic(testClock(), quietMonitor(), opts)
	a.TrackNetworkErrors(px)

	var got []model.RawError
	a.Observable().Subscribe(func(e model.RawError) { got = append(got, e) })
	return p, native, &got
}

func request(t *testing.T, p *browser.Platform, native *manualMethods, url string, status int, body string) {
	t.Helper()
	x := p.NewXHR()
	require.NoError(t, x.Open("POST", url))
	require.NoError(t, x.Send(nil))
	x.Complete(native.gen[x], status, body)
}

func TestNetworkErrorsForRejectedAndServerErrors(t *testing.T) {
	p, native, got := startNetworkTracking(t, AutomaticOptions{})

	request(t, p, native, "/ok", 200, "fine")
	request(t, p, native, "/missing", 404, "nope")
	request(t, p, native, "/broken", 503, "upstream down")
	request(t, p, native, "/offline", 0, "")

	require.Len(t, *got, 2)

	server := (*got)[0]
	assert.Equal(t, model.SourceNetwork, server.Source)
	assert.Equal(t, "XHR error POST https://app.example.com/broken", server.Message)
	assert.Equal(t, "upstream down", server.Stack)
	assert.Equal(t, &model.ResourceInfo{Method: "POST", StatusCode: 503, URL: "https://app.example.com/broken"}, server.Resource)

	rejected := (*got)[1]
	assert.Equal(t, failedToLoad, rejected.Stack)
	assert.Equal(t, 0, rejected.Resource.StatusCode)
}

func TestNetworkErrorsIgnoreIntake(t *testing.T) {
	p, native, got := startNetworkTracking(t, AutomaticOptions{
		IsIntake: func(url string) bool { return strings.HasPrefix(url, "https://intake.example.com/") },
	})

	request(t, p, native, "https://intake.example.com/v1/input", 500, "")
	assert.Empty(t, *got)
}

func TestNetworkErrorResponseIsTruncated(t *testing.T) {
	p, native, got := startNetworkTracking(t, AutomaticOptions{ResponseLengthLimit: 5})

	request(t, p, native, "/a", 500, "héllo world")
	require.Len(t, *got, 1)
	assert.Equal(t, "héllo...", (*got)[0].Stack)
}

func TestGuardReportsAndRepanics(t *testing.T) {
	a := NewAutomatic(testClock(), quietMonitor(), AutomaticOptions{})
	var got []model.RawError
	a.Observable().Subscribe(func(e model.RawError) { got = append(got, e) })

	boom := errors.New("boom")
	assert.PanicsWithValue(t, boom, func() {
		a.Guard(func() { panic(boom) })
	})
	assert.PanicsWithValue(t, "plain", func() {
		a.Guard(func() { panic("plain") })
	})
	a.Guard(func() {})

	require.Len(t, got, 2)
	assert.Equal(t, model.SourceSource, got[0].Source)
	assert.Equal(t, "boom", got[0].Message)
	assert.True(t, strings.HasPrefix(got[0].Stack, "errors.fundamental: boom\n"))
	assert.EqualValues(t, 50, got[0].StartTime)

	assert.Equal(t, `Uncaught "plain"`, got[1].Message)
	assert.Equal(t, NoStackHint, got[1].Stack)
}
