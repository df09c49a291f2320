package viewer

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/helixml/consoleviewer/api/pkg/keyboard"
	"github.com/helixml/consoleviewer/api/pkg/protocol"
	"github.com/helixml/consoleviewer/api/pkg/transport"
)

// pendingCalls stands in for the async runner so tests decide when each
// network call runs and completes.
type pendingCalls struct {
	work []func() func()
}

func (p *pendingCalls) spawn(work func() func()) {
	p.work = append(p.work, work)
}

func (p *pendingCalls) run() {
	w := p.work[0]
	p.work = p.work[1:]
	w()()
}

type ViewerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	transport *transport.MockTransport
	calls     *pendingCalls

	now         time.Time
	errs        []error
	statuses    []Status
	ended       [][]byte
	diagnostics []Diagnostics
}

func TestViewerSuite(t *testing.T) {
	suite.Run(t, new(ViewerSuite))
}

func (suite *ViewerSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.transport = transport.NewMockTransport(suite.ctrl)
	suite.calls = &pendingCalls{}
	suite.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	suite.errs = nil
	suite.statuses = nil
	suite.ended = nil
	suite.diagnostics = nil
}

func (suite *ViewerSuite) newViewer(mutate func(*Options)) *Viewer {
	opts := Options{
		PanelID:    "panel",
		UpdateURL:  "http://host/update",
		Locale:     "en-us",
		Width:      128,
		Height:     64,
		TileWidth:  64,
		TileHeight: 64,
		Clock:      func() time.Time { return suite.now },
		OnError:    func(err error) { suite.errs = append(suite.errs, err) },
		OnStatus:   func(s Status) { suite.statuses = append(suite.statuses, s) },
		OnSessionEnded: func(page []byte) {
			suite.ended = append(suite.ended, page)
		},
		OnDiagnostics: func(d Diagnostics) {
			suite.diagnostics = append(suite.diagnostics, d)
		},
	}
	if mutate != nil {
		mutate(&opts)
	}

	v, err := New(suite.transport, opts)
	suite.Require().NoError(err)
	v.async = suite.calls.spawn
	v.start(context.Background())
	return v
}

// newSendOnlyViewer returns a viewer with no update pending, so only sends
// reach the transport.
func (suite *ViewerSuite) newSendOnlyViewer() *Viewer {
	v := suite.newViewer(nil)
	v.update.state = updateIdle
	return v
}

func (suite *ViewerSuite) TestKeyDownDoesNotFlush() {
	v := suite.newViewer(nil)

	v.handleKey(protocol.KeyDown, keyboard.JSKeyEnter, 0)
	suite.Equal(1, v.queue.Len())
	suite.Empty(suite.calls.work)

	suite.transport.EXPECT().SendEvents(gomock.Any(), "2|2|5|65293|0|2|6|65293|0|").Return(nil)

	v.handleKey(protocol.KeyUp, keyboard.JSKeyEnter, 0)
	suite.Require().Len(suite.calls.work, 1)
	suite.True(v.send.inFlight)

	suite.calls.run()
	suite.False(v.send.inFlight)
	suite.Equal(1, v.stats.BatchesSent)
	suite.Equal(2, v.stats.EventsSent)

	// completion continues with the update cycle
	suite.Require().Len(suite.calls.work, 1)
	suite.Equal(updatePolling, v.update.state)
	suite.Equal([]Status{StatusSending, StatusSent, StatusReceiving}, suite.statuses)
}

func (suite *ViewerSuite) TestAtMostOneBatchInFlight() {
	v := suite.newSendOnlyViewer()

	gomock.InOrder(
		suite.transport.EXPECT().SendEvents(gomock.Any(), "1|1|2|10|20|0|0|").Return(nil),
		suite.transport.EXPECT().SendEvents(gomock.Any(), "1|1|3|10|20|0|0|").Return(nil),
	)

	v.handleMouse(protocol.MouseDown, 10, 20, 0, 0)
	v.handleMouse(protocol.MouseUp, 10, 20, 0, 0)
	v.flush()

	suite.Len(suite.calls.work, 1)
	suite.Equal(1, v.queue.Len())

	suite.calls.run()
	suite.Empty(suite.calls.work)

	v.tick()
	suite.Require().Len(suite.calls.work, 1)
	suite.calls.run()

	suite.Equal(2, v.stats.BatchesSent)
	suite.Zero(v.queue.Len())
}

func (suite *ViewerSuite) TestMouseMovesCoalesceWhileInFlight() {
	v := suite.newSendOnlyViewer()

	gomock.InOrder(
		suite.transport.EXPECT().SendEvents(gomock.Any(), "1|1|1|1|1|0|0|").Return(nil),
		suite.transport.EXPECT().SendEvents(gomock.Any(), "2|1|1|9|9|0|0|1|2|9|9|0|0|").Return(nil),
	)

	v.handleMouse(protocol.MouseMove, 1, 1, 0, 0)
	for i := 2; i < 10; i++ {
		v.handleMouse(protocol.MouseMove, i, i, 0, 0)
	}
	v.handleMouse(protocol.MouseDown, 9, 9, 0, 0)

	suite.calls.run()
	v.tick()
	suite.calls.run()
}

func (suite *ViewerSuite) TestSendErrorClearsInFlight() {
	v := suite.newSendOnlyViewer()

	gomock.InOrder(
		suite.transport.EXPECT().SendEvents(gomock.Any(), gomock.Any()).Return(errors.New("connection refused")),
		suite.transport.EXPECT().SendEvents(gomock.Any(), "1|1|2|5|5|0|0|").Return(nil),
	)

	v.handleMouse(protocol.MouseMove, 1, 1, 0, 0)
	suite.calls.run()

	suite.False(v.send.inFlight)
	suite.Require().Len(suite.errs, 1)
	suite.Contains(suite.errs[0].Error(), "connection refused")
	suite.Equal(1, v.stats.SendErrors)

	v.handleMouse(protocol.MouseDown, 5, 5, 0, 0)
	suite.Require().Len(suite.calls.work, 1)
	suite.calls.run()
	suite.Equal(1, v.stats.BatchesSent)
}

func (suite *ViewerSuite) TestDoubleClickWithinThreshold() {
	v := suite.newSendOnlyViewer()

	gomock.InOrder(
		suite.transport.EXPECT().SendEvents(gomock.Any(), "1|1|3|10|20|0|0|").Return(nil),
		suite.transport.EXPECT().SendEvents(gomock.Any(), "2|1|3|30|40|0|0|1|8|10|20|0|0|").Return(nil),
	)

	v.handleMouse(protocol.MouseUp, 10, 20, 0, 0)
	suite.now = suite.now.Add(100 * time.Millisecond)
	v.handleMouse(protocol.MouseUp, 30, 40, 0, 0)

	suite.calls.run()
	v.tick()
	suite.calls.run()

	suite.Equal(1, v.stats.DoubleClicks)
}

func (suite *ViewerSuite) TestNoDoubleClickAtThreshold() {
	v := suite.newSendOnlyViewer()

	gomock.InOrder(
		suite.transport.EXPECT().SendEvents(gomock.Any(), "1|1|3|10|20|0|0|").Return(nil),
		suite.transport.EXPECT().SendEvents(gomock.Any(), "1|1|3|10|20|0|0|").Return(nil),
	)

	v.handleMouse(protocol.MouseUp, 10, 20, 0, 0)
	suite.now = suite.now.Add(300 * time.Millisecond)
	v.handleMouse(protocol.MouseUp, 10, 20, 0, 0)

	suite.calls.run()
	v.tick()
	suite.calls.run()

	suite.Zero(v.stats.DoubleClicks)
}

func (suite *ViewerSuite) TestLateCompletionAfterStopIsIgnored() {
	v := suite.newViewer(nil)

	suite.transport.EXPECT().SendEvents(gomock.Any(), gomock.Any()).Return(nil)

	v.handleMouse(protocol.MouseDown, 1, 1, 0, 0)
	suite.Require().Len(suite.calls.work, 1)

	v.stop()
	suite.False(v.send.inFlight)

	suite.calls.run()
	suite.Zero(v.stats.BatchesSent)
	suite.Empty(suite.calls.work)
	suite.Equal([]Status{StatusSending}, suite.statuses)

	// input after stop is dropped
	v.handleMouse(protocol.MouseDown, 1, 1, 0, 0)
	suite.Zero(v.queue.Len())
}

func (suite *ViewerSuite) TestUpdateCycle() {
	v := suite.newViewer(nil)

	img := image.NewRGBA(image.Rect(0, 0, 128, 64))
	gomock.InOrder(
		suite.transport.EXPECT().PollUpdate(gomock.Any(), "http://host/update").
			Return([]byte(`ajaxViewer.refresh("http://host/img/1.png", [[0, 0], [0, 1]], true);`), nil),
		suite.transport.EXPECT().FetchImage(gomock.Any(), "http://host/img/1.png").Return(img, nil),
	)

	v.tick()
	suite.Require().Len(suite.calls.work, 1)
	suite.Equal(updatePolling, v.update.state)

	// poll completes, the script installs a new tile map and loads its image
	suite.calls.run()
	suite.Require().Len(suite.calls.work, 1)
	suite.Equal(updateDirty, v.update.state)
	suite.False(v.image.loaded)

	// image load paints the tiles and polls again right away
	suite.calls.run()
	suite.Require().Len(suite.calls.work, 1)
	suite.Equal(updatePolling, v.update.state)
	suite.Equal(2, v.renderer.ZIndex())
	suite.Equal(2, v.stats.TilesPainted)
	suite.Equal(1, v.stats.Polls)
	suite.Equal(1, v.stats.ImagesLoaded)

	c, ok := v.renderer.Cell(0, 1)
	suite.Require().True(ok)
	suite.Equal(image.Pt(64, 0), c.Visible().Offset)
	suite.Equal("http://host/img/1.png", c.Visible().Source.URL)

	suite.Equal([]Status{StatusReceiving, StatusReceived, StatusReceiving}, suite.statuses)
}

func (suite *ViewerSuite) TestPollErrorRearmsWithoutRepaint() {
	v := suite.newViewer(func(o *Options) {
		o.ImageURL = "http://host/img/0.png"
	})
	suite.Require().Len(suite.calls.work, 1)

	img := image.NewRGBA(image.Rect(0, 0, 128, 64))
	suite.transport.EXPECT().FetchImage(gomock.Any(), "http://host/img/0.png").Return(img, nil)
	gomock.InOrder(
		suite.transport.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout")),
		suite.transport.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).Return([]byte(""), nil),
	)

	suite.calls.run()
	suite.Require().Len(suite.calls.work, 1)
	applied := v.stats.UpdatesApplied
	z := v.renderer.ZIndex()

	suite.calls.run()
	suite.Require().Len(suite.errs, 1)
	suite.Equal(updateDirty, v.update.state)
	suite.Empty(suite.calls.work)

	v.tick()
	suite.Require().Len(suite.calls.work, 1)
	suite.Equal(applied, v.stats.UpdatesApplied)
	suite.Equal(z, v.renderer.ZIndex())

	// an empty payload goes back to polling on the next tick
	suite.calls.run()
	suite.Equal(updateDirty, v.update.state)
	suite.Equal(2, v.stats.Polls)
	suite.Equal(1, v.stats.PollErrors)
}

func (suite *ViewerSuite) TestImageFailureRetriedOnTick() {
	v := suite.newViewer(func(o *Options) {
		o.ImageURL = "http://host/img/0.png"
	})

	img := image.NewRGBA(image.Rect(0, 0, 128, 64))
	gomock.InOrder(
		suite.transport.EXPECT().FetchImage(gomock.Any(), "http://host/img/0.png").Return(nil, errors.New("gone")),
		suite.transport.EXPECT().FetchImage(gomock.Any(), "http://host/img/0.png").Return(img, nil),
	)
	suite.transport.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).Return([]byte(""), nil).AnyTimes()

	suite.calls.run()
	suite.True(v.image.failed)
	suite.Len(suite.errs, 1)

	v.tick()
	suite.Require().Len(suite.calls.work, 1)
	suite.calls.run()

	suite.True(v.image.loaded)
	suite.Equal(1, v.stats.ImageErrors)
	suite.Equal(1, v.stats.ImagesLoaded)
	suite.Equal(updatePolling, v.update.state)
}

func (suite *ViewerSuite) TestSessionEnded() {
	v := suite.newViewer(nil)

	suite.transport.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).
		Return([]byte("  <HTML><body>session closed</body></html>"), nil)

	v.tick()
	suite.calls.run()

	suite.False(v.started)
	suite.Require().Len(suite.ended, 1)
	suite.Contains(string(suite.ended[0]), "session closed")

	v.handleKey(protocol.KeyUp, keyboard.JSKeyEnter, 0)
	v.tick()
	suite.Zero(v.queue.Len())
	suite.Empty(suite.calls.work)
}

func (suite *ViewerSuite) TestScriptErrorReported() {
	v := suite.newViewer(nil)

	suite.transport.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).Return([]byte("ajaxViewer.refresh("), nil)

	v.tick()
	suite.calls.run()

	suite.Require().Len(suite.errs, 1)
	suite.Contains(suite.errs[0].Error(), "failed to apply update")
	suite.Equal(updateDirty, v.update.state)
	suite.True(v.started)
}

func (suite *ViewerSuite) TestScriptResize() {
	v := suite.newViewer(nil)

	suite.transport.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).
		Return([]byte(`ajaxViewer.resize("panel", 256, 128, 32, 32); ajaxViewer.setDirty(false);`), nil)

	v.tick()
	suite.calls.run()

	w, h := v.renderer.Size()
	suite.Equal(256, w)
	suite.Equal(128, h)
	rows, cols := v.renderer.Grid()
	suite.Equal(4, rows)
	suite.Equal(8, cols)

	// the current tile map is repainted into the new grid
	suite.True(v.update.needsPaint)
}

func (suite *ViewerSuite) TestScriptResizeRejectsHugeGrid() {
	v := suite.newViewer(nil)

	suite.transport.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).
		Return([]byte(`ajaxViewer.resize("", 3000000000, 3000000000, 1, 1);`), nil)

	v.tick()
	suite.NotPanics(func() { suite.calls.run() })

	suite.Require().Len(suite.errs, 1)
	suite.Contains(suite.errs[0].Error(), "rejected resize")
	w, h := v.renderer.Size()
	suite.Equal(128, w)
	suite.Equal(64, h)
	suite.Equal(updateDirty, v.update.state)
}

func (suite *ViewerSuite) TestSetDirtyFalseParksUpdateLoop() {
	v := suite.newViewer(nil)

	suite.transport.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).
		Return([]byte(`ajaxViewer.setDirty(false);`), nil)

	v.tick()
	suite.calls.run()
	suite.Equal(updateIdle, v.update.state)

	// parked: heartbeats do not poll
	v.tick()
	v.tick()
	suite.Empty(suite.calls.work)

	suite.transport.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).Return([]byte(""), nil)
	v.setDirty(true)
	suite.Require().Len(suite.calls.work, 1)
	suite.Equal(updatePolling, v.update.state)

	// an empty script re-arms the loop again
	suite.calls.run()
	suite.Equal(updateDirty, v.update.state)
}

func (suite *ViewerSuite) TestDiagnosticsChordInertWhenDisabled() {
	v := suite.newViewer(nil)

	v.handleKey(protocol.KeyDown, keyboard.JSKeySpace, protocol.ModCtrl|protocol.ModAlt|protocol.ModShift)

	suite.False(v.diagnostics)
	suite.Equal(1, v.queue.Len())
}

func (suite *ViewerSuite) TestDiagnosticsChordToggles() {
	v := suite.newViewer(func(o *Options) {
		o.EnableDiagnostics = true
	})

	chord := protocol.ModCtrl | protocol.ModAlt | protocol.ModShift
	v.handleKey(protocol.KeyDown, keyboard.JSKeySpace, chord)
	v.handleKey(protocol.KeyUp, keyboard.JSKeySpace, chord)

	suite.True(v.diagnostics)
	suite.Zero(v.queue.Len())
	suite.Require().Len(suite.diagnostics, 1)
	suite.Equal("us", suite.diagnostics[0].Keyboard)
	suite.Equal(v.ID(), suite.diagnostics[0].ViewerID)

	v.handleKey(protocol.KeyDown, keyboard.JSKeySpace, chord)
	suite.False(v.diagnostics)
}

func (suite *ViewerSuite) TestSendCtrlAltDel() {
	v := suite.newSendOnlyViewer()

	suite.transport.EXPECT().SendEvents(gomock.Any(),
		"6|2|5|65507|128|2|5|65513|640|2|5|65535|640|2|6|65535|640|2|6|65513|128|2|6|65507|0|").Return(nil)

	v.sendCtrlAltDel()
	suite.calls.run()
	suite.Equal(6, v.stats.EventsSent)
}

func (suite *ViewerSuite) TestSendCtrlEsc() {
	v := suite.newSendOnlyViewer()

	suite.transport.EXPECT().SendEvents(gomock.Any(),
		"4|2|5|65507|128|2|5|65307|128|2|6|65307|128|2|6|65507|0|").Return(nil)

	v.sendCtrlEsc()
	suite.calls.run()
}

func (suite *ViewerSuite) TestJapaneseProfileFromLocale() {
	v := suite.newSendOnlyViewer()
	suite.Equal(keyboard.ProfileUS, v.mapper.Profile())

	v = suite.newViewer(func(o *Options) {
		o.Locale = "ja-JP"
	})
	suite.Equal(keyboard.ProfileJapanese, v.mapper.Profile())
}

func TestNew_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := transport.NewMockTransport(ctrl)

	_, err := New(nil, Options{UpdateURL: "http://x", Width: 1, Height: 1})
	require.Error(t, err)

	_, err = New(tr, Options{Width: 1, Height: 1})
	require.Error(t, err)

	_, err = New(tr, Options{UpdateURL: "http://x"})
	require.Error(t, err)

	_, err = New(tr, Options{UpdateURL: "http://x", Width: 1 << 20, Height: 480})
	require.Error(t, err)

	_, err = New(tr, Options{UpdateURL: "http://x", Width: 4096, Height: 4096, TileWidth: 1, TileHeight: 1})
	require.Error(t, err)

	v, err := New(tr, Options{UpdateURL: "http://x", Width: 640, Height: 480})
	require.NoError(t, err)
	require.Equal(t, DefaultHeartbeat, v.opts.Heartbeat)
	require.Equal(t, DefaultDoubleClickThreshold, v.opts.DoubleClickThreshold)
	require.NotEmpty(t, v.ID())
}

func TestRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := transport.NewMockTransport(ctrl)

	sent := make(chan string, 16)
	tr.EXPECT().SendEvents(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, batch string) error {
		sent <- batch
		return nil
	}).AnyTimes()
	tr.EXPECT().PollUpdate(gomock.Any(), gomock.Any()).Return([]byte(""), nil).AnyTimes()

	v, err := New(tr, Options{
		UpdateURL: "http://host/update",
		Width:     64,
		Height:    64,
		Heartbeat: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runErr atomic.Value
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		if err := v.Run(ctx); err != nil {
			runErr.Store(err)
		}
	}()

	require.NoError(t, v.MouseDown(3, 4, 0, 0))

	select {
	case batch := <-sent:
		require.Equal(t, "1|1|2|3|4|0|0|", batch)
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not sent")
	}

	require.Eventually(t, func() bool {
		stats, err := v.Stats(ctx)
		return err == nil && stats.BatchesSent == 1 && stats.Polls > 0
	}, 5*time.Second, 10*time.Millisecond)

	snap, err := v.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 64, 64), snap.Bounds())

	cancel()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("viewer did not stop")
	}
	require.ErrorIs(t, runErr.Load().(error), context.Canceled)

	require.ErrorIs(t, v.MouseDown(1, 1, 0, 0), ErrNotRunning)
	stats, err := v.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.BatchesSent)
}
