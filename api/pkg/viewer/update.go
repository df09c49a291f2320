package viewer

import (
	"fmt"

	"github.com/helixml/consoleviewer/api/pkg/render"
	"github.com/helixml/consoleviewer/api/pkg/transport"
)

// install records a new screen update: the tile map is painted from
// imageURL once the image has loaded.
func (v *Viewer) install(imageURL string, tiles render.TileMap, fullImage bool) {
	v.update.parked = false
	v.tileMap = tiles
	v.fullImage = fullImage
	v.update.needsPaint = true
	v.update.state = updateDirty
	v.loadImage(imageURL)
}

// refresh is the update script's entry point. The update cycle continues
// right away if the image is already available.
func (v *Viewer) refresh(imageURL string, tiles render.TileMap, fullImage bool) {
	if !v.started {
		return
	}
	v.install(imageURL, tiles, fullImage)
	v.checkUpdate()
}

// setDirty(false) parks the update loop: it stays idle until the next
// refresh or setDirty(true).
func (v *Viewer) setDirty(dirty bool) {
	if !v.started {
		return
	}
	if dirty {
		v.update.parked = false
		v.update.state = updateDirty
		v.checkUpdate()
		return
	}
	v.update.parked = true
	if v.update.state == updateDirty {
		v.update.state = updateIdle
	}
}

// resize rebuilds the grid with empty cells and repaints the current tile
// map into it. Cells outside that map stay blank until the host sends them.
func (v *Viewer) resize(panelID string, width, height, tileWidth, tileHeight int) {
	if panelID != "" && v.opts.PanelID != "" && panelID != v.opts.PanelID {
		v.logger.Debug().Str("panel_id", panelID).Msg("ignoring resize for another panel")
		return
	}
	if err := render.CheckSize(width, height, tileWidth, tileHeight); err != nil {
		v.fail(fmt.Errorf("rejected resize: %w", err))
		return
	}
	v.renderer.Resize(width, height, tileWidth, tileHeight)
	v.update.needsPaint = true
	v.logger.Info().
		Int("width", width).
		Int("height", height).
		Int("tile_width", tileWidth).
		Int("tile_height", tileHeight).
		Msg("console resized")
}

// checkUpdate paints a pending tile map and polls for the next update. It
// does nothing unless the screen is dirty and the image has loaded.
func (v *Viewer) checkUpdate() {
	if !v.started || v.update.state != updateDirty {
		return
	}
	if !v.image.loaded {
		if v.image.failed {
			v.loadImage(v.image.url)
		}
		return
	}

	if v.update.needsPaint {
		n := v.renderer.Paint(v.source, v.tileMap, v.fullImage)
		v.update.needsPaint = false
		v.stats.TilesPainted += n
		v.stats.UpdatesApplied++
	}

	v.update.state = updatePolling
	v.notify(StatusReceiving)

	gen := v.generation
	ctx := v.sessionCtx
	updateURL := v.opts.UpdateURL
	v.async(func() func() {
		body, err := v.transport.PollUpdate(ctx, updateURL)
		return func() { v.onUpdate(gen, body, err) }
	})
}

func (v *Viewer) onUpdate(gen uint64, body []byte, err error) {
	if !v.current(gen) {
		return
	}
	v.stats.Polls++

	if err != nil {
		v.stats.PollErrors++
		// poll again on the next tick, the screen is already up to date
		v.update.state = updateDirty
		v.fail(fmt.Errorf("failed to poll update: %w", err))
		return
	}
	v.notify(StatusReceived)

	if transport.IsSessionEndedPage(body) {
		v.logger.Info().Msg("console session ended by host")
		v.stop()
		if v.opts.OnSessionEnded != nil {
			v.opts.OnSessionEnded(body)
		}
		return
	}

	v.update.state = updateIdle
	v.update.parked = false
	if err := v.scripts.Run(body, scriptTarget{v}); err != nil {
		v.fail(fmt.Errorf("failed to apply update: %w", err))
	}
	// a script that neither refreshed nor parked the loop polls again
	if v.started && v.update.state == updateIdle && !v.update.parked {
		v.update.state = updateDirty
	}
}

// loadImage fetches imageURL off the dispatch goroutine. Only the most
// recent request is honoured.
func (v *Viewer) loadImage(imageURL string) {
	v.image.url = imageURL
	v.image.seq++
	v.image.failed = false

	if imageURL == "" {
		// nothing to paint from, tiles keep whatever they show
		v.source = nil
		v.image.loading = false
		v.image.loaded = true
		return
	}

	v.image.loading = true
	v.image.loaded = false

	gen := v.generation
	seq := v.image.seq
	ctx := v.sessionCtx
	v.async(func() func() {
		img, err := v.transport.FetchImage(ctx, imageURL)
		return func() {
			if !v.current(gen) || seq != v.image.seq {
				return
			}
			v.image.loading = false
			if err != nil {
				v.stats.ImageErrors++
				v.image.failed = true
				v.fail(fmt.Errorf("failed to load tile image: %w", err))
				return
			}
			v.stats.ImagesLoaded++
			v.source = &render.Source{URL: imageURL, Image: img}
			v.image.loaded = true
			v.checkUpdate()
		}
	})
}
