// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// DefaultMaxResponseBytes bounds the response text kept on a request object.
const DefaultMaxResponseBytes = 1 << 20

// NativeMethods is the default RequestMethods implementation: requests are
// executed with an http.Client on loop-managed goroutines and their outcome is
// delivered back on the loop.
type NativeMethods struct {
	client   *http.Client
	loop     *Loop
	maxBytes int64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewNativeMethods returns native methods that run requests with client
// (http.DefaultClient when nil) and deliver completions on loop.
func NewNativeMethods(loop *Loop, client *http.Client) *NativeMethods {
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &NativeMethods{client: client, loop: loop, maxBytes: DefaultMaxResponseBytes, ctx: ctx, cancel: cancel}
}

// Open validates the method and URL and resets x to Opened.
func (n *NativeMethods) Open(x *XHR, method, rawURL string) error {
	if strings.TrimSpace(method) == "" {
		return fmt.Errorf("open: empty method")
	}
	u, err := x.platform.resolve(rawURL)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	x.MarkOpened(strings.ToUpper(method), u.String())
	return nil
}

// Send starts the request. It fails with ErrInvalidState unless x is opened
// and not yet sent.
func (n *NativeMethods) Send(x *XHR, body []byte) error {
	ctx, cancel := context.WithCancel(n.ctx)
	gen, err := x.MarkSent(cancel)
	if err != nil {
		cancel()
		return err
	}

	header := make(http.Header)
	if h := x.RequestHeader(); h != nil {
		header = h.Clone()
	}
	// A trace started for this request continues in the transport.
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))

	req, err := http.NewRequestWithContext(ctx, x.Method(), x.URL(), bytes.NewReader(body))
	if err != nil {
		cancel()
		n.loop.Post(func() { x.Fail(gen) })
		return nil
	}
	req.Header = header

	n.loop.Go(func() {
		defer cancel()
		resp, err := n.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.loop.Post(func() { x.Fail(gen) })
			return
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, n.maxBytes))
		if err != nil && ctx.Err() != nil {
			return
		}
		status := resp.StatusCode
		n.loop.Post(func() { x.Complete(gen, status, string(data)) })
	})
	return nil
}

// Close cancels every in-flight request.
func (n *NativeMethods) Close() {
	n.cancel()
}
