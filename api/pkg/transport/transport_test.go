package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBagURL(t *testing.T) {
	u, err := EventBagURL("http://host/ajax?token=abc")
	require.NoError(t, err)
	assert.Equal(t, "http://host/ajax?token=abc&event=7", u)

	// existing parameters keep their order and escaping
	u, err = EventBagURL("http://host/ajax?z=1&q=a+b&a=%2F")
	require.NoError(t, err)
	assert.Equal(t, "http://host/ajax?z=1&q=a+b&a=%2F&event=7", u)

	u, err = EventBagURL("http://host/ajax")
	require.NoError(t, err)
	assert.Equal(t, "http://host/ajax?event=7", u)
}

func TestIsSessionEndedPage(t *testing.T) {
	assert.True(t, IsSessionEndedPage([]byte("<html><body>bye</body></html>")))
	assert.True(t, IsSessionEndedPage([]byte("\n  <HTML>")))
	assert.False(t, IsSessionEndedPage([]byte("ajaxViewer.refresh('x', [], true);")))
	assert.False(t, IsSessionEndedPage([]byte("<ht")))
	assert.False(t, IsSessionEndedPage(nil))
}

func TestSendEvents(t *testing.T) {
	var gotData, gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		gotData = r.PostForm.Get("data")
		gotEvent = r.URL.Query().Get("event")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Options{EventURL: srv.URL + "/ajax?sid=1"})
	require.NoError(t, err)

	err = tr.SendEvents(context.Background(), "1|2|5|65|0|")
	require.NoError(t, err)
	assert.Equal(t, "1|2|5|65|0|", gotData)
	assert.Equal(t, "7", gotEvent)
}

func TestSendEvents_NoAutomaticRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Options{EventURL: srv.URL})
	require.NoError(t, err)

	err = tr.SendEvents(context.Background(), "0|")
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "boom", httpErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPollUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("_"))
		assert.Equal(t, "42", r.URL.Query().Get("sid"))
		_, _ = w.Write([]byte("ajaxViewer.setDirty(true);"))
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Options{EventURL: srv.URL})
	require.NoError(t, err)

	body, err := tr.PollUpdate(context.Background(), srv.URL+"/update?sid=42")
	require.NoError(t, err)
	assert.Equal(t, "ajaxViewer.setDirty(true);", string(body))
}

func TestPollUpdate_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Options{EventURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = tr.PollUpdate(ctx, srv.URL)
	require.Error(t, err)
}

func TestFetchImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	src.SetRGBA(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "not yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Options{EventURL: srv.URL, ImageRetryAttempts: 3})
	require.NoError(t, err)

	img, err := tr.FetchImage(context.Background(), srv.URL+"/tile.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchImage_NotAnImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("definitely not a png"))
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(Options{EventURL: srv.URL, ImageRetryAttempts: 3})
	require.NoError(t, err)

	_, err = tr.FetchImage(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestNewHTTPTransport_RequiresEventURL(t *testing.T) {
	_, err := NewHTTPTransport(Options{})
	require.Error(t, err)
}

func TestRetryClient_RequestLog(t *testing.T) {
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	client := newRetryClient(0, false, time.Second)
	req, err := http.NewRequest(http.MethodPost, "http://host/ajax?event=7", nil)
	require.NoError(t, err)
	client.RequestLogHook(nil, req, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "http://host/ajax?event=7", entry["url"])
	assert.EqualValues(t, 2, entry["attempt"])
	assert.NotContains(t, entry, "POST")
}
