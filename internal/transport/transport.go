// Package transport delivers beacons over HTTP. Sends are fire-and-forget
// where possible, and no failure here is ever surfaced to the host: it is
// logged to the event log and dropped.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/perfsight/rumbeacon/internal/beacon"
	"github.com/perfsight/rumbeacon/internal/eventlog"
	"github.com/perfsight/rumbeacon/internal/tracing"
)

// Request is one outbound beacon transmission.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Kind   string // beacon family, for spans and logging
}

// Sender delivers a single request.
type Sender interface {
	Send(ctx context.Context, req Request) error
}

// BlockedError signals that delivery was refused by policy; the POST path
// retries such a send once against the fallback endpoint.
type BlockedError struct {
	StatusCode int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("beacon blocked by policy (status %d)", e.StatusCode)
}

// HTTPError is a non-blocking delivery failure.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("beacon rejected with status %d", e.StatusCode)
}

// HTTPSender performs a blocking request. It is the synchronous fallback
// primitive and the POST path, where the outcome must be observed to
// detect a policy block.
type HTTPSender struct {
	Client    *http.Client
	Propagate bool
}

func NewHTTPSender(timeout time.Duration, propagate bool) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		Client:    &http.Client{Timeout: timeout},
		Propagate: propagate,
	}
}

func (s *HTTPSender) Send(ctx context.Context, req Request) error {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return err
	}
	if req.Method == http.MethodPost {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if s.Propagate {
		tracing.InjectHTTPHeaders(ctx, httpReq.Header)
	}

	resp, err := s.Client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return &BlockedError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	return nil
}

// AsyncSender wraps a Sender with fire-and-forget semantics, the
// sendBeacon analogue: Send returns immediately and the outcome is only
// reported through onError. Wait drains in-flight sends before shutdown.
type AsyncSender struct {
	inner   Sender
	wg      sync.WaitGroup
	onError func(Request, error)
}

func NewAsyncSender(inner Sender, onError func(Request, error)) *AsyncSender {
	return &AsyncSender{inner: inner, onError: onError}
}

func (s *AsyncSender) Send(ctx context.Context, req Request) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.inner.Send(context.WithoutCancel(ctx), req); err != nil && s.onError != nil {
			s.onError(req, err)
		}
	}()
	return nil
}

// Wait blocks until all in-flight sends complete.
func (s *AsyncSender) Wait() {
	s.wg.Wait()
}

// Transport routes beacons to the configured endpoints with the POST
// policy-block retry.
type Transport struct {
	log         *eventlog.Log
	tracer      trace.Tracer
	sync        Sender
	async       *AsyncSender
	postURL     string
	fallbackURL string

	mu      sync.Mutex
	retried bool
}

// Options configures a Transport. FallbackURL may be empty; it is then
// derived from the GET endpoint's origin and the POST endpoint's path.
type Options struct {
	Log         *eventlog.Log
	Tracer      trace.Tracer
	Sender      Sender // synchronous primitive; required
	Async       *AsyncSender
	GetURL      string
	PostURL     string
	FallbackURL string
}

func New(opts Options) *Transport {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("rumbeacon")
	}
	fallback := opts.FallbackURL
	if fallback == "" {
		fallback = deriveFallback(opts.GetURL, opts.PostURL)
	}
	return &Transport{
		log:         opts.Log,
		tracer:      tracer,
		sync:        opts.Sender,
		async:       opts.Async,
		postURL:     opts.PostURL,
		fallbackURL: fallback,
	}
}

// SendGET transmits a GET beacon, preferring the fire-and-forget primitive
// when present.
func (t *Transport) SendGET(ctx context.Context, beaconURL, kind string) error {
	ctx, span := tracing.StartBeaconSpan(ctx, t.tracer, http.MethodGet, kind)
	req := Request{Method: http.MethodGet, URL: beaconURL, Kind: kind}

	var err error
	if t.async != nil {
		err = t.async.Send(ctx, req)
	} else {
		err = t.sync.Send(ctx, req)
	}
	tracing.EndSpan(span, err, attribute.Int("url.length", len(beaconURL)))
	if err != nil {
		t.log.Log(eventlog.SendFailed, kind, err.Error())
	}
	return err
}

// SendPOST transmits the JSON beacon. On a policy block it retries exactly
// once against the fallback endpoint, flags the payload as blocked, and
// re-serializes before the retry so the flag travels with it.
func (t *Transport) SendPOST(ctx context.Context, p *beacon.Payload, kind string) error {
	body, err := p.Marshal()
	if err != nil {
		t.log.Log(eventlog.SendFailed, kind, err.Error())
		return err
	}

	ctx, span := tracing.StartBeaconSpan(ctx, t.tracer, http.MethodPost, kind)
	err = t.sync.Send(ctx, Request{Method: http.MethodPost, URL: t.postURL, Body: body, Kind: kind})
	tracing.EndSpan(span, err)
	if err == nil {
		t.log.Log(eventlog.PostBeaconSent, kind)
		return nil
	}

	var blocked *BlockedError
	if !errors.As(err, &blocked) || t.fallbackURL == "" {
		t.log.Log(eventlog.SendFailed, kind, err.Error())
		return err
	}

	t.mu.Lock()
	alreadyRetried := t.retried
	t.retried = true
	t.mu.Unlock()

	t.log.Log(eventlog.PostBeaconBlocked, kind, blocked.StatusCode)
	if alreadyRetried {
		return err
	}

	p.Flags = p.Flags.Set(beacon.FlagBeaconBlockedByCsp)
	body, err = p.Marshal()
	if err != nil {
		return err
	}

	ctx, span = tracing.StartBeaconSpan(ctx, t.tracer, http.MethodPost, kind)
	err = t.sync.Send(ctx, Request{Method: http.MethodPost, URL: t.fallbackURL, Body: body, Kind: kind})
	tracing.EndSpan(span, err)
	if err != nil {
		t.log.Log(eventlog.SendFailed, kind, err.Error())
		return err
	}
	t.log.Log(eventlog.PostBeaconRetried, kind)
	return nil
}

// Wait drains any in-flight asynchronous sends.
func (t *Transport) Wait() {
	if t.async != nil {
		t.async.Wait()
	}
}

// deriveFallback combines the GET endpoint's origin with the POST
// endpoint's path.
func deriveFallback(getURL, postURL string) string {
	if getURL == "" || postURL == "" {
		return ""
	}
	g, err := url.Parse(getURL)
	if err != nil {
		return ""
	}
	p, err := url.Parse(postURL)
	if err != nil {
		return ""
	}
	g.Path = p.Path
	g.RawQuery = ""
	return g.String()
}
