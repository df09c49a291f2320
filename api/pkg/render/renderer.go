// Package render keeps the double-buffered tile grid of the console screen.
//
// Every grid cell owns two layers. A repaint always goes into the layer that
// is not current, then that layer becomes current with a z-index above every
// layer painted before it, so a cell never shows a half updated region.
package render

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Tile addresses one grid cell in a tile map.
type Tile struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// TileMap is the ordered list of tiles carried by an update.
type TileMap []Tile

// Source is a loaded background image together with the URL it came from.
type Source struct {
	URL   string
	Image image.Image
}

// Layer is one of the two overlays of a cell.
type Layer struct {
	// Offset is the background position inside the source image.
	Offset  image.Point
	Source  *Source
	ZIndex  int
	Painted bool
}

// Cell is a grid cell with its two layers. Current indexes the visible one.
type Cell struct {
	Row     int
	Col     int
	Layers  [2]Layer
	Current int
}

// Visible returns the current layer.
func (c *Cell) Visible() Layer {
	return c.Layers[c.Current]
}

// Renderer owns the tile grid of one viewer.
type Renderer struct {
	width      int
	height     int
	tileWidth  int
	tileHeight int
	rows       int
	cols       int
	cells      []Cell

	// zIndex is the highest z-index handed out; it never decreases, including
	// across Resize.
	zIndex int
}

const (
	// MaxDimension bounds the canvas width and height in pixels.
	MaxDimension = 16384
	// MaxCells bounds the number of grid cells.
	MaxCells = 1 << 16
)

// CheckSize reports whether a canvas and tile size can be rendered.
func CheckSize(width, height, tileWidth, tileHeight int) error {
	if width <= 0 || height <= 0 || tileWidth <= 0 || tileHeight <= 0 {
		return fmt.Errorf("invalid size %dx%d with %dx%d tiles", width, height, tileWidth, tileHeight)
	}
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("canvas %dx%d exceeds %d pixels per side", width, height, MaxDimension)
	}
	cols := (width + tileWidth - 1) / tileWidth
	rows := (height + tileHeight - 1) / tileHeight
	if rows*cols > MaxCells {
		return fmt.Errorf("grid of %dx%d tiles exceeds %d cells", cols, rows, MaxCells)
	}
	return nil
}

// NewRenderer builds a grid covering width x height pixels.
func NewRenderer(width, height, tileWidth, tileHeight int) *Renderer {
	r := &Renderer{}
	r.Resize(width, height, tileWidth, tileHeight)
	return r
}

// Resize rebuilds the grid. Cell contents are dropped; the z-index counter
// is kept.
func (r *Renderer) Resize(width, height, tileWidth, tileHeight int) {
	if tileWidth <= 0 {
		tileWidth = 1
	}
	if tileHeight <= 0 {
		tileHeight = 1
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	r.width = width
	r.height = height
	r.tileWidth = tileWidth
	r.tileHeight = tileHeight
	r.cols = (width + tileWidth - 1) / tileWidth
	r.rows = (height + tileHeight - 1) / tileHeight

	r.cells = make([]Cell, r.rows*r.cols)
	for row := 0; row < r.rows; row++ {
		for col := 0; col < r.cols; col++ {
			r.cells[row*r.cols+col] = Cell{Row: row, Col: col}
		}
	}
}

// Size returns the canvas size in pixels.
func (r *Renderer) Size() (width, height int) {
	return r.width, r.height
}

// TileSize returns the tile size in pixels.
func (r *Renderer) TileSize() (width, height int) {
	return r.tileWidth, r.tileHeight
}

// Grid returns the number of rows and columns.
func (r *Renderer) Grid() (rows, cols int) {
	return r.rows, r.cols
}

// ZIndex returns the highest z-index handed out so far.
func (r *Renderer) ZIndex() int {
	return r.zIndex
}

// Cell returns a copy of the cell at row, col.
func (r *Renderer) Cell(row, col int) (Cell, bool) {
	c := r.cell(row, col)
	if c == nil {
		return Cell{}, false
	}
	return *c, true
}

func (r *Renderer) cell(row, col int) *Cell {
	if row < 0 || col < 0 || row >= r.rows || col >= r.cols {
		return nil
	}
	return &r.cells[row*r.cols+col]
}

// Offset returns the background position of the tile at index i of a tile
// map. In full image mode the offset follows the tile's grid position; in
// partial mode tiles are laid out left to right in a horizontal strip.
func (r *Renderer) Offset(i int, t Tile, fullImage bool) image.Point {
	if fullImage {
		return image.Pt(t.Col*r.tileWidth, t.Row*r.tileHeight)
	}
	return image.Pt(i*r.tileWidth, 0)
}

// Paint repaints every tile of tiles from src and returns how many cells
// were updated. Tiles outside the grid are skipped.
func (r *Renderer) Paint(src *Source, tiles TileMap, fullImage bool) int {
	painted := 0
	for i, t := range tiles {
		c := r.cell(t.Row, t.Col)
		if c == nil {
			continue
		}

		next := 1 - c.Current
		r.zIndex++
		c.Layers[next] = Layer{
			Offset:  r.Offset(i, t, fullImage),
			Source:  src,
			ZIndex:  r.zIndex,
			Painted: true,
		}
		c.Current = next
		painted++
	}
	return painted
}

// Composite draws the visible layer of every painted cell onto a new canvas.
func (r *Renderer) Composite() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	for i := range r.cells {
		c := &r.cells[i]
		l := c.Visible()
		if !l.Painted || l.Source == nil || l.Source.Image == nil {
			continue
		}

		cellRect := image.Rect(
			c.Col*r.tileWidth,
			c.Row*r.tileHeight,
			(c.Col+1)*r.tileWidth,
			(c.Row+1)*r.tileHeight,
		).Intersect(dst.Bounds())

		sp := l.Source.Image.Bounds().Min.Add(l.Offset)
		draw.Draw(dst, cellRect, l.Source.Image, sp, draw.Src)
	}
	return dst
}

// Thumbnail scales the composited canvas down to at most maxWidth pixels
// wide, keeping the aspect ratio.
func (r *Renderer) Thumbnail(maxWidth int) image.Image {
	canvas := r.Composite()
	if maxWidth <= 0 || r.width <= maxWidth {
		return canvas
	}

	h := r.height * maxWidth / r.width
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	return dst
}
