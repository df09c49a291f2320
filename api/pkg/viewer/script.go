package viewer

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"

	"github.com/helixml/consoleviewer/api/pkg/render"
)

// ScriptHost receives the calls an update script makes on the ajaxViewer
// object.
type ScriptHost interface {
	Refresh(imageURL string, tiles render.TileMap, fullImage bool)
	Resize(panelID string, width, height, tileWidth, tileHeight int)
	SetDirty(dirty bool)
}

// ScriptRunner evaluates update payloads. Every payload runs in a fresh
// runtime that is interrupted after the timeout.
type ScriptRunner struct {
	timeout time.Duration
}

func NewScriptRunner(timeout time.Duration) *ScriptRunner {
	return &ScriptRunner{timeout: timeout}
}

var (
	// ErrScriptTimeout is returned when a payload runs past the timeout.
	ErrScriptTimeout = errors.New("update script timed out")
	ErrScriptPanic   = errors.New("update script panicked")
)

// Run evaluates script with host bound as ajaxViewer. A panic raised by a
// host call is returned as an error.
func (r *ScriptRunner) Run(script []byte, host ScriptHost) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrScriptPanic, p)
		}
	}()

	vm := goja.New()

	av := vm.NewObject()
	if err := av.Set("refresh", func(call goja.FunctionCall) goja.Value {
		tiles, err := exportTileMap(call.Argument(1))
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		host.Refresh(call.Argument(0).String(), tiles, call.Argument(2).ToBoolean())
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := av.Set("resize", func(call goja.FunctionCall) goja.Value {
		host.Resize(
			exportString(call.Argument(0)),
			int(call.Argument(1).ToInteger()),
			int(call.Argument(2).ToInteger()),
			int(call.Argument(3).ToInteger()),
			int(call.Argument(4).ToInteger()),
		)
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := av.Set("setDirty", func(call goja.FunctionCall) goja.Value {
		host.SetDirty(call.Argument(0).ToBoolean())
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := vm.Set("ajaxViewer", av); err != nil {
		return err
	}

	timer := time.AfterFunc(r.timeout, func() {
		vm.Interrupt(ErrScriptTimeout)
	})
	defer timer.Stop()

	_, err = vm.RunString(string(script))
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return ErrScriptTimeout
		}
		return fmt.Errorf("script error: %w", err)
	}
	return nil
}

func exportString(v goja.Value) string {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// exportTileMap accepts [[row, col], ...] or [{row: r, col: c}, ...].
func exportTileMap(v goja.Value) (render.TileMap, error) {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	raw, ok := v.Export().([]interface{})
	if !ok {
		return nil, fmt.Errorf("tile map must be an array, got %T", v.Export())
	}

	tiles := make(render.TileMap, 0, len(raw))
	for i, item := range raw {
		var row, col interface{}
		switch t := item.(type) {
		case []interface{}:
			if len(t) < 2 {
				return nil, fmt.Errorf("tile %d: expected [row, col]", i)
			}
			row, col = t[0], t[1]
		case map[string]interface{}:
			row, col = t["row"], t["col"]
		default:
			return nil, fmt.Errorf("tile %d: unexpected %T", i, item)
		}

		r, err := toInt(row)
		if err != nil {
			return nil, fmt.Errorf("tile %d row: %w", i, err)
		}
		c, err := toInt(col)
		if err != nil {
			return nil, fmt.Errorf("tile %d col: %w", i, err)
		}
		tiles = append(tiles, render.Tile{Row: r, Col: c})
	}
	return tiles, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// scriptTarget binds script calls to the viewer's dispatch-side methods.
type scriptTarget struct {
	v *Viewer
}

func (t scriptTarget) Refresh(imageURL string, tiles render.TileMap, fullImage bool) {
	t.v.refresh(imageURL, tiles, fullImage)
}

func (t scriptTarget) Resize(panelID string, width, height, tileWidth, tileHeight int) {
	t.v.resize(panelID, width, height, tileWidth, tileHeight)
}

func (t scriptTarget) SetDirty(dirty bool) {
	t.v.setDirty(dirty)
}
