// Package transport talks to the console session host: it submits event
// batches, polls for screen updates and fetches tile images.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"image"
	// image decoders for tile images
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	stdlog "log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"

	"github.com/helixml/consoleviewer/api/pkg/protocol"
)

//go:generate mockgen -source $GOFILE -destination transport_mocks.go -package $GOPACKAGE

// Transport is the host side of the viewer. Calls block until the request
// completes; the viewer runs them off its dispatch goroutine.
type Transport interface {
	// SendEvents submits one encoded event batch.
	SendEvents(ctx context.Context, batch string) error
	// PollUpdate fetches the next update payload from updateURL.
	PollUpdate(ctx context.Context, updateURL string) ([]byte, error)
	// FetchImage downloads and decodes a tile image.
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)
}

// HTTPError is a non-200 answer from the session host.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("status code %d (%s)", e.StatusCode, e.Message)
}

// IsSessionEndedPage reports whether an update payload is a full HTML
// document, which the host sends once the console session is gone.
func IsSessionEndedPage(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) < 5 {
		return false
	}
	return strings.EqualFold(string(trimmed[:5]), "<html")
}

// Options configures an HTTPTransport.
type Options struct {
	// EventURL is the event submission endpoint; the event bag marker is
	// appended to it.
	EventURL string
	Timeout  time.Duration
	// RetryMax is the number of automatic retries per request. The viewer
	// heartbeat already retries by resuming on the next tick, so the default
	// is zero.
	RetryMax           int
	ImageRetryAttempts uint
	TLSSkipVerify      bool
}

// HTTPTransport implements Transport over HTTP.
type HTTPTransport struct {
	client             *retryablehttp.Client
	eventURL           string
	imageRetryAttempts uint
}

var _ Transport = &HTTPTransport{}

// NewHTTPTransport builds a transport for one console session.
func NewHTTPTransport(opts Options) (*HTTPTransport, error) {
	if opts.EventURL == "" {
		return nil, errors.New("event URL is required")
	}
	eventURL, err := EventBagURL(opts.EventURL)
	if err != nil {
		return nil, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ImageRetryAttempts == 0 {
		opts.ImageRetryAttempts = 1
	}

	return &HTTPTransport{
		client:             newRetryClient(opts.RetryMax, opts.TLSSkipVerify, opts.Timeout),
		eventURL:           eventURL,
		imageRetryAttempts: opts.ImageRetryAttempts,
	}, nil
}

// EventBagURL appends the event bag marker to an event endpoint URL. The
// existing query is kept as written.
func EventBagURL(eventURL string) (string, error) {
	u, err := url.Parse(eventURL)
	if err != nil {
		return "", fmt.Errorf("invalid event URL %q: %w", eventURL, err)
	}
	marker := "event=" + strconv.Itoa(int(protocol.EventBag))
	if u.RawQuery == "" {
		u.RawQuery = marker
	} else {
		u.RawQuery += "&" + marker
	}
	return u.String(), nil
}

func newRetryClient(retryMax int, tlsSkipVerify bool, timeout time.Duration) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.HTTPClient.Timeout = timeout

	if tlsSkipVerify {
		retryClient.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}
	retryClient.Logger = stdlog.New(io.Discard, "", stdlog.LstdFlags)
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		log.Trace().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Int("attempt", attempt).
			Msg("console host request")
	}
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if resp == nil {
			return true, err
		}
		return resp.StatusCode >= 500, nil
	}
	// surface the last response instead of a generic "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return retryClient
}

// SendEvents posts a batch under the "data" form field.
func (t *HTTPTransport) SendEvents(ctx context.Context, batch string) error {
	form := url.Values{}
	form.Set("data", batch)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.eventURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err = t.do(req)
	if err != nil {
		return fmt.Errorf("failed to send events: %w", err)
	}
	return nil
}

// PollUpdate fetches an update payload. A cache-busting parameter is added
// to every request.
func (t *HTTPTransport) PollUpdate(ctx context.Context, updateURL string) ([]byte, error) {
	u, err := url.Parse(updateURL)
	if err != nil {
		return nil, fmt.Errorf("invalid update URL %q: %w", updateURL, err)
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create update request: %w", err)
	}

	body, err := t.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll update: %w", err)
	}
	return body, nil
}

// FetchImage downloads and decodes an image, retrying failed attempts.
func (t *HTTPTransport) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	var img image.Image

	err := retry.Do(
		func() error {
			req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			body, err := t.do(req)
			if err != nil {
				return err
			}
			decoded, format, err := image.Decode(bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to decode image: %w", err))
			}
			log.Trace().Str("url", imageURL).Str("format", format).Msg("tile image loaded")
			img = decoded
			return nil
		},
		retry.Attempts(t.imageRetryAttempts),
		retry.Delay(100*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image %s: %w", imageURL, err)
	}
	return img, nil
}

func (t *HTTPTransport) do(req *retryablehttp.Request) ([]byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
