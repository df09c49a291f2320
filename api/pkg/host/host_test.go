package host

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/consoleviewer/api/pkg/protocol"
	"github.com/helixml/consoleviewer/api/pkg/transport"
)

func newTestHost(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Width == 0 {
		opts = Options{Width: 128, Height: 64, TileWidth: 64, TileHeight: 64, LongPoll: 50 * time.Millisecond}
	}
	srv, err := NewServer(opts)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func createSession(t *testing.T, ts *httptest.Server) SessionInfo {
	t.Helper()
	resp, err := http.Post(ts.URL+APIPrefix+"/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var info SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	return info
}

func get(t *testing.T, u string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestCreateSession(t *testing.T) {
	_, ts := newTestHost(t, Options{})

	info := createSession(t, ts)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, ts.URL+"/console/sessions/"+info.ID+"/ajax", info.EventURL)
	assert.Equal(t, ts.URL+"/console/sessions/"+info.ID+"/update", info.UpdateURL)
	assert.Equal(t, 128, info.Width)

	status, body := get(t, ts.URL+APIPrefix+"/sessions")
	require.Equal(t, http.StatusOK, status)
	var infos []SessionInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, info.ID, infos[0].ID)
}

func TestEventsRecorded(t *testing.T) {
	srv, ts := newTestHost(t, Options{})
	info := createSession(t, ts)

	tr, err := transport.NewHTTPTransport(transport.Options{EventURL: info.EventURL})
	require.NoError(t, err)

	events := []protocol.Event{
		protocol.NewMouseEvent(protocol.MouseDown, 10, 10, 0, 0),
		protocol.NewKeyboardEvent(protocol.KeyDown, 0xff0d, protocol.ModShift),
	}
	require.NoError(t, tr.SendEvents(context.Background(), protocol.EncodeBatch(events)))

	sess, ok := srv.Session(info.ID)
	require.True(t, ok)
	assert.Equal(t, events, sess.Events())
	assert.Equal(t, 1, sess.Batches())
	assert.Equal(t, MarkerColor, sess.Pixel(10, 10))
}

func TestEventsRejected(t *testing.T) {
	_, ts := newTestHost(t, Options{})
	info := createSession(t, ts)

	post := func(u, data string) int {
		resp, err := http.PostForm(u, url.Values{"data": {data}})
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusBadRequest, post(info.EventURL+"?event=7", "2|1|2|"))
	assert.Equal(t, http.StatusBadRequest, post(info.EventURL, "0|"))
	assert.Equal(t, http.StatusBadRequest, post(info.EventURL+"?event=7", "99999999999999|"))
	assert.Equal(t, http.StatusOK, post(info.EventURL+"?event=7", "0|"))
	assert.Equal(t, http.StatusNotFound, post(ts.URL+APIPrefix+"/sessions/nope/ajax?event=7", "0|"))
}

func TestUpdate_FullThenPartial(t *testing.T) {
	_, ts := newTestHost(t, Options{})
	info := createSession(t, ts)
	imageURL := ts.URL + "/console/sessions/" + info.ID + "/image"

	status, body := get(t, info.UpdateURL)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `ajaxViewer.refresh("`+imageURL+`?key=1", [[0,0],[0,1]], true);`, string(body))

	status, body = get(t, imageURL+"?key=1")
	require.Equal(t, http.StatusOK, status)
	full, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 128, 64), full.Bounds())

	tr, err := transport.NewHTTPTransport(transport.Options{EventURL: info.EventURL})
	require.NoError(t, err)
	require.NoError(t, tr.SendEvents(context.Background(), "1|1|2|70|10|0|0|"))

	status, body = get(t, info.UpdateURL)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `ajaxViewer.refresh("`+imageURL+`?key=2", [[0,1]], false);`, string(body))

	status, body = get(t, imageURL+"?key=2")
	require.Equal(t, http.StatusOK, status)
	strip, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 64), strip.Bounds())
	r, g, b, a := strip.At(6, 10).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0, 0, 0xffff}, [4]uint32{r, g, b, a})
}

func TestUpdate_LongPollTimeout(t *testing.T) {
	_, ts := newTestHost(t, Options{})
	info := createSession(t, ts)

	get(t, info.UpdateURL)

	start := time.Now()
	status, body := get(t, info.UpdateURL)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ajaxViewer.setDirty(true);", string(body))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestUpdate_WakesOnEvent(t *testing.T) {
	_, ts := newTestHost(t, Options{Width: 128, Height: 64, TileWidth: 64, TileHeight: 64, LongPoll: 5 * time.Second})
	info := createSession(t, ts)
	get(t, info.UpdateURL)

	go func() {
		time.Sleep(50 * time.Millisecond)
		resp, err := http.PostForm(info.EventURL+"?event=7", url.Values{"data": {"1|1|2|1|1|0|0|"}})
		if err == nil {
			resp.Body.Close()
		}
	}()

	status, body := get(t, info.UpdateURL)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "[[0,0]], false")
}

func TestSessionEnded(t *testing.T) {
	srv, ts := newTestHost(t, Options{})
	info := createSession(t, ts)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+APIPrefix+"/sessions/"+info.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body := get(t, info.UpdateURL)
	assert.True(t, transport.IsSessionEndedPage(body))

	_, body = get(t, ts.URL+APIPrefix+"/sessions/unknown/update")
	assert.True(t, transport.IsSessionEndedPage(body))

	assert.False(t, srv.EndSession("unknown"))
	assert.Equal(t, 1, srv.Reap())
	_, ok := srv.Session(info.ID)
	assert.False(t, ok)
}

func TestReapIdleSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srv, err := NewServer(Options{
		Width:      64,
		Height:     64,
		SessionTTL: time.Minute,
		Clock:      func() time.Time { return now },
	})
	require.NoError(t, err)

	old := srv.CreateSession()
	now = now.Add(45 * time.Second)
	fresh := srv.CreateSession()
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, srv.Reap())
	_, ok := srv.Session(old.ID)
	assert.False(t, ok)
	_, ok = srv.Session(fresh.ID)
	assert.True(t, ok)
}

func TestRefreshScript(t *testing.T) {
	script := refreshScript("http://h/i", Frame{Key: 3, FullImage: false})
	assert.Equal(t, `ajaxViewer.refresh("http://h/i?key=3", [], false);`, script)
	assert.True(t, strings.HasPrefix(script, "ajaxViewer.refresh("))
}

func TestNewServer_InvalidSize(t *testing.T) {
	_, err := NewServer(Options{})
	require.Error(t, err)
}

func TestNewRemoteSession(t *testing.T) {
	srv, ts := newTestHost(t, Options{})

	info, err := NewRemoteSession(context.Background(), ts.URL+"/")
	require.NoError(t, err)

	_, ok := srv.Session(info.ID)
	assert.True(t, ok)
	assert.Equal(t, ts.URL+"/console/sessions/"+info.ID+"/update", info.UpdateURL)

	_, err = NewRemoteSession(context.Background(), ts.URL+"/missing")
	require.Error(t, err)
}
