// Package viewer drives a remote console session from the client side.
//
// A Viewer owns one dispatch goroutine. Local input, heartbeat ticks and the
// completions of network calls are all delivered to it as messages, so the
// session state is only ever touched from that goroutine. The heartbeat
// (50ms by default) flushes pending input to the host and checks whether the
// screen needs to be repainted and polled again.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/helixml/consoleviewer/api/pkg/keyboard"
	"github.com/helixml/consoleviewer/api/pkg/protocol"
	"github.com/helixml/consoleviewer/api/pkg/render"
	"github.com/helixml/consoleviewer/api/pkg/transport"
)

const (
	DefaultHeartbeat            = 50 * time.Millisecond
	DefaultDoubleClickThreshold = 300 * time.Millisecond
	DefaultScriptTimeout        = time.Second
	DefaultTileSize             = 64

	inboxSize = 1024
)

// ErrNotRunning is returned by calls that need the dispatch loop when the
// viewer is not running.
var ErrNotRunning = errors.New("viewer is not running")

// Options are the construction parameters of a viewer.
type Options struct {
	PanelID   string
	ImageURL  string
	UpdateURL string
	// Locale selects the keyboard profile, e.g. "en-us" or "ja".
	Locale         string
	GuestOS        string
	Browser        string
	BrowserVersion string

	TileMap    render.TileMap
	FullImage  bool
	Width      int
	Height     int
	TileWidth  int
	TileHeight int

	Heartbeat            time.Duration
	DoubleClickThreshold time.Duration
	ScriptTimeout        time.Duration

	// EnableDiagnostics arms the Ctrl+Alt+Shift+Space overlay chord.
	EnableDiagnostics bool

	OnStatus       func(Status)
	OnError        func(error)
	OnSessionEnded func(page []byte)
	OnDiagnostics  func(Diagnostics)

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Viewer is the client of one console session.
type Viewer struct {
	id        string
	opts      Options
	transport transport.Transport
	logger    zerolog.Logger
	scripts   *ScriptRunner

	inbox   chan func()
	done    chan struct{}
	running atomic.Bool
	wg      conc.WaitGroup
	// async runs work off the dispatch goroutine and posts the completion
	// it returns back to it.
	async func(work func() func())

	// dispatch goroutine state
	started    bool
	generation uint64
	sessionCtx context.Context
	cancel     context.CancelFunc

	mapper   *keyboard.Mapper
	queue    *protocol.Queue
	renderer *render.Renderer

	send      sendState
	update    update
	image     imageState
	source    *render.Source
	tileMap   render.TileMap
	fullImage bool
	status    Status
	lastClick lastClick

	diagnostics bool
	stats       Stats
	moveCount   int
}

// New creates a viewer. Nothing happens until Run is called.
func New(t transport.Transport, opts Options) (*Viewer, error) {
	if t == nil {
		return nil, errors.New("transport is required")
	}
	if opts.UpdateURL == "" {
		return nil, errors.New("update URL is required")
	}
	if opts.TileWidth <= 0 {
		opts.TileWidth = DefaultTileSize
	}
	if opts.TileHeight <= 0 {
		opts.TileHeight = DefaultTileSize
	}
	if err := render.CheckSize(opts.Width, opts.Height, opts.TileWidth, opts.TileHeight); err != nil {
		return nil, fmt.Errorf("invalid canvas: %w", err)
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.DoubleClickThreshold <= 0 {
		opts.DoubleClickThreshold = DefaultDoubleClickThreshold
	}
	if opts.ScriptTimeout <= 0 {
		opts.ScriptTimeout = DefaultScriptTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	opts.GuestOS = strings.ToLower(opts.GuestOS)
	opts.Browser = strings.ToLower(opts.Browser)

	id := uuid.New().String()
	profile := keyboard.ProfileFromLocale(opts.Locale)

	v := &Viewer{
		id:        id,
		opts:      opts,
		transport: t,
		logger:    log.With().Str("viewer_id", id).Logger(),
		scripts:   NewScriptRunner(opts.ScriptTimeout),
		inbox:     make(chan func(), inboxSize),
		done:      make(chan struct{}),
		mapper:    keyboard.NewMapper(profile),
		queue:     protocol.NewQueue(),
		renderer:  render.NewRenderer(opts.Width, opts.Height, opts.TileWidth, opts.TileHeight),
	}
	v.async = v.goAsync

	return v, nil
}

// ID returns the viewer instance ID.
func (v *Viewer) ID() string {
	return v.id
}

// Run starts the session and drives the heartbeat until ctx is cancelled or
// the host ends the session.
func (v *Viewer) Run(ctx context.Context) error {
	if !v.running.CompareAndSwap(false, true) {
		return errors.New("viewer is already running")
	}
	defer close(v.done)

	v.logger.Info().
		Str("panel_id", v.opts.PanelID).
		Str("update_url", v.opts.UpdateURL).
		Str("keyboard", v.mapper.Profile().String()).
		Int("width", v.opts.Width).
		Int("height", v.opts.Height).
		Dur("heartbeat", v.opts.Heartbeat).
		Msg("starting console viewer")

	v.start(ctx)

	ticker := time.NewTicker(v.opts.Heartbeat)
	defer ticker.Stop()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		case <-ticker.C:
			v.tick()
		case fn := <-v.inbox:
			fn()
		}
		if !v.started {
			// session ended by the host
			break loop
		}
	}

	v.stop()
	v.drainAsync()

	v.logger.Info().
		Int("batches_sent", v.stats.BatchesSent).
		Int("polls", v.stats.Polls).
		Msg("console viewer stopped")

	return err
}

// drainAsync waits for outstanding calls while discarding their completions.
func (v *Viewer) drainAsync() {
	waited := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(waited)
	}()
	for {
		select {
		case <-waited:
			return
		case <-v.inbox:
		}
	}
}

func (v *Viewer) goAsync(work func() func()) {
	v.wg.Go(func() {
		complete := work()
		select {
		case v.inbox <- complete:
		case <-v.done:
		}
	})
}

// post hands fn to the dispatch goroutine.
func (v *Viewer) post(fn func()) error {
	select {
	case <-v.done:
		return ErrNotRunning
	default:
	}
	select {
	case v.inbox <- fn:
		return nil
	case <-v.done:
		return ErrNotRunning
	}
}

// call runs fn on the dispatch goroutine and waits for its result.
func call[T any](ctx context.Context, v *Viewer, fn func() T) (T, error) {
	var zero T
	if !v.running.Load() {
		return zero, ErrNotRunning
	}
	result := make(chan T, 1)
	if err := v.post(func() { result <- fn() }); err != nil {
		return zero, err
	}
	select {
	case r := <-result:
		return r, nil
	case <-v.done:
		return zero, ErrNotRunning
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// start resets the session state and installs the initial screen.
func (v *Viewer) start(ctx context.Context) {
	if v.started {
		return
	}
	v.started = true
	v.generation++
	v.sessionCtx, v.cancel = context.WithCancel(ctx)

	v.install(v.opts.ImageURL, v.opts.TileMap, v.opts.FullImage)
}

// stop tears the session down. Completions of calls issued before stop are
// ignored because the generation changes.
func (v *Viewer) stop() {
	if !v.started {
		return
	}
	v.started = false
	v.generation++
	if v.cancel != nil {
		v.cancel()
	}

	v.queue.Reset()
	v.mapper.Drain()
	v.send = sendState{}
	v.update = update{}
	v.image = imageState{}
	v.lastClick = lastClick{}
}

// current reports whether a completion issued under gen may still act.
func (v *Viewer) current(gen uint64) bool {
	return v.started && gen == v.generation
}

// tick is one heartbeat: flush pending input, then check for updates.
func (v *Viewer) tick() {
	if !v.started {
		return
	}
	v.flush()
	v.checkUpdate()
}

func (v *Viewer) notify(s Status) {
	v.status = s
	v.logger.Trace().Str("status", s.String()).Msg("viewer status")
	if v.opts.OnStatus != nil {
		v.opts.OnStatus(s)
	}
	v.publishDiagnostics()
}

func (v *Viewer) fail(err error) {
	v.logger.Warn().Err(err).Msg("console viewer error")
	if v.opts.OnError != nil {
		v.opts.OnError(err)
	}
}

func (v *Viewer) publishDiagnostics() {
	if !v.diagnostics {
		return
	}
	d := v.snapshotDiagnostics()
	v.logger.Info().
		Str("status", d.Status.String()).
		Bool("in_flight", d.InFlight).
		Str("update_state", d.UpdateState).
		Int("queue_len", d.QueueLen).
		Int("z_index", d.ZIndex).
		Msg("diagnostics")
	if v.opts.OnDiagnostics != nil {
		v.opts.OnDiagnostics(d)
	}
}

func (v *Viewer) snapshotDiagnostics() Diagnostics {
	return Diagnostics{
		ViewerID:    v.id,
		Status:      v.status,
		InFlight:    v.send.inFlight,
		UpdateState: v.update.state.String(),
		ImageURL:    v.image.url,
		ImageLoaded: v.image.loaded,
		QueueLen:    v.queue.Len(),
		ZIndex:      v.renderer.ZIndex(),
		Keyboard:    v.mapper.Profile().String(),
		Stats:       v.stats,
	}
}

// Public API. Every method is safe for concurrent use; input methods are
// asynchronous and return ErrNotRunning once the viewer has stopped.

// KeyDown feeds a local keydown.
func (v *Viewer) KeyDown(code int, modifiers protocol.Modifiers) error {
	return v.post(func() { v.handleKey(protocol.KeyDown, code, modifiers) })
}

// KeyUp feeds a local keyup.
func (v *Viewer) KeyUp(code int, modifiers protocol.Modifiers) error {
	return v.post(func() { v.handleKey(protocol.KeyUp, code, modifiers) })
}

// KeyPress feeds a local keypress character code.
func (v *Viewer) KeyPress(code int, modifiers protocol.Modifiers) error {
	return v.post(func() { v.handleKey(protocol.KeyPress, code, modifiers) })
}

// MouseMove feeds a pointer position.
func (v *Viewer) MouseMove(x, y int, modifiers protocol.Modifiers) error {
	return v.post(func() { v.handleMouse(protocol.MouseMove, x, y, 0, modifiers) })
}

// MouseDown feeds a button press.
func (v *Viewer) MouseDown(x, y, button int, modifiers protocol.Modifiers) error {
	return v.post(func() { v.handleMouse(protocol.MouseDown, x, y, button, modifiers) })
}

// MouseUp feeds a button release.
func (v *Viewer) MouseUp(x, y, button int, modifiers protocol.Modifiers) error {
	return v.post(func() { v.handleMouse(protocol.MouseUp, x, y, button, modifiers) })
}

// SetKeyboard switches the keyboard profile.
func (v *Viewer) SetKeyboard(p keyboard.Profile) error {
	return v.post(func() {
		v.mapper.SetProfile(p)
		v.logger.Info().Str("keyboard", v.mapper.Profile().String()).Msg("keyboard profile changed")
	})
}

// SendCtrlAltDel sends the Ctrl+Alt+Del chord.
func (v *Viewer) SendCtrlAltDel() error {
	return v.post(v.sendCtrlAltDel)
}

// SendCtrlEsc sends the Ctrl+Esc chord.
func (v *Viewer) SendCtrlEsc() error {
	return v.post(v.sendCtrlEsc)
}

// Refresh installs a new tile map as the update script would.
func (v *Viewer) Refresh(imageURL string, tiles render.TileMap, fullImage bool) error {
	return v.post(func() { v.refresh(imageURL, tiles, fullImage) })
}

// SetDirty marks the screen dirty, or parks the update loop when dirty is
// false.
func (v *Viewer) SetDirty(dirty bool) error {
	return v.post(func() { v.setDirty(dirty) })
}

// Snapshot composites the visible screen.
func (v *Viewer) Snapshot(ctx context.Context) (image.Image, error) {
	return call(ctx, v, func() image.Image { return v.renderer.Composite() })
}

// Thumbnail composites the visible screen scaled down to maxWidth.
func (v *Viewer) Thumbnail(ctx context.Context, maxWidth int) (image.Image, error) {
	return call(ctx, v, func() image.Image { return v.renderer.Thumbnail(maxWidth) })
}

// Stats returns the activity counters. Once Run has returned it reports the
// final counters.
func (v *Viewer) Stats(ctx context.Context) (Stats, error) {
	select {
	case <-v.done:
		return v.stats, nil
	default:
	}
	return call(ctx, v, func() Stats { return v.stats })
}

// Diagnostics returns the current diagnostics snapshot.
func (v *Viewer) Diagnostics(ctx context.Context) (Diagnostics, error) {
	return call(ctx, v, v.snapshotDiagnostics)
}
