package host

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/helixml/consoleviewer/api/pkg/protocol"
	"github.com/helixml/consoleviewer/api/pkg/render"
)

// MarkerColor is painted under every mouse click the host receives.
var MarkerColor = color.RGBA{R: 255, A: 255}

const (
	markerSize = 8
	keepFrames = 8
)

// Frame is one screen update: the tiles it repaints and the image they are
// cut from.
type Frame struct {
	Key       int
	Tiles     render.TileMap
	FullImage bool
	PNG       []byte
}

// Session is one console session held by the host. Its screen is a test
// pattern that clicks paint markers onto.
type Session struct {
	ID      string
	Created time.Time

	width      int
	height     int
	tileWidth  int
	tileHeight int

	mu       sync.Mutex
	screen   *image.RGBA
	events   []protocol.Event
	batches  int
	dirty    map[render.Tile]struct{}
	needFull bool
	frames   map[int]Frame
	nextKey  int
	ended    bool
	lastSeen time.Time
	changed  chan struct{}
}

func newSession(id string, width, height, tileWidth, tileHeight int, now time.Time) *Session {
	s := &Session{
		ID:         id,
		Created:    now,
		width:      width,
		height:     height,
		tileWidth:  tileWidth,
		tileHeight: tileHeight,
		screen:     testPattern(width, height),
		dirty:      make(map[render.Tile]struct{}),
		needFull:   true,
		frames:     make(map[int]Frame),
		lastSeen:   now,
		changed:    make(chan struct{}, 1),
	}
	return s
}

func testPattern(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(width-1, 1)),
				G: uint8(y * 255 / max(height-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// Apply records a decoded batch and updates the screen.
func (s *Session) Apply(events []protocol.Event, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches++
	s.lastSeen = now
	s.events = append(s.events, events...)

	for _, e := range events {
		if e.Type != protocol.EventTypeMouse || e.Kind != protocol.MouseDown {
			continue
		}
		s.paintMarker(e.X, e.Y)
	}
}

func (s *Session) paintMarker(x, y int) {
	r := image.Rect(x-markerSize/2, y-markerSize/2, x+markerSize/2, y+markerSize/2).Intersect(s.screen.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(s.screen, r, image.NewUniform(MarkerColor), image.Point{}, draw.Src)

	for row := r.Min.Y / s.tileHeight; row <= (r.Max.Y-1)/s.tileHeight; row++ {
		for col := r.Min.X / s.tileWidth; col <= (r.Max.X-1)/s.tileWidth; col++ {
			s.dirty[render.Tile{Row: row, Col: col}] = struct{}{}
		}
	}
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Events returns a copy of every event received so far.
func (s *Session) Events() []protocol.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Event(nil), s.events...)
}

// Batches returns how many batches were received.
func (s *Session) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// Pixel returns the color of the host screen at (x, y).
func (s *Session) Pixel(x, y int) color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen.RGBAAt(x, y)
}

// End marks the session as ended and wakes waiting update requests.
func (s *Session) End() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	s.signal()
}

// Ended reports whether the session has ended.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// nextFrame cuts the pending update into a frame, or returns false when the
// screen has not changed.
func (s *Session) nextFrame(now time.Time) (Frame, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = now
	if !s.needFull && len(s.dirty) == 0 {
		return Frame{}, false, nil
	}

	var (
		img   image.Image
		tiles render.TileMap
		full  = s.needFull
	)
	if full {
		tiles = s.allTiles()
		img = s.screen
	} else {
		tiles = s.dirtyTiles()
		img = s.strip(tiles)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Frame{}, false, fmt.Errorf("failed to encode frame: %w", err)
	}

	s.nextKey++
	f := Frame{Key: s.nextKey, Tiles: tiles, FullImage: full, PNG: buf.Bytes()}
	s.frames[f.Key] = f
	delete(s.frames, f.Key-keepFrames)

	s.needFull = false
	clear(s.dirty)
	return f, true, nil
}

func (s *Session) frame(key int) (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.frames[key]
	return f, ok
}

func (s *Session) allTiles() render.TileMap {
	rows := (s.height + s.tileHeight - 1) / s.tileHeight
	cols := (s.width + s.tileWidth - 1) / s.tileWidth
	tiles := make(render.TileMap, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			tiles = append(tiles, render.Tile{Row: row, Col: col})
		}
	}
	return tiles
}

func (s *Session) dirtyTiles() render.TileMap {
	tiles := make(render.TileMap, 0, len(s.dirty))
	for t := range s.dirty {
		tiles = append(tiles, t)
	}
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Row != tiles[j].Row {
			return tiles[i].Row < tiles[j].Row
		}
		return tiles[i].Col < tiles[j].Col
	})
	return tiles
}

// strip lays the tiles out left to right, the partial update image layout.
func (s *Session) strip(tiles render.TileMap) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, len(tiles)*s.tileWidth, s.tileHeight))
	for i, t := range tiles {
		sp := image.Pt(t.Col*s.tileWidth, t.Row*s.tileHeight)
		r := image.Rect(i*s.tileWidth, 0, (i+1)*s.tileWidth, s.tileHeight)
		draw.Draw(dst, r, s.screen, sp, draw.Src)
	}
	return dst
}
