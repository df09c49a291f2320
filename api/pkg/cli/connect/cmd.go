package connect

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helixml/consoleviewer/api/pkg/config"
	"github.com/helixml/consoleviewer/api/pkg/host"
	"github.com/helixml/consoleviewer/api/pkg/transport"
	"github.com/helixml/consoleviewer/api/pkg/viewer"
)

type options struct {
	host          string
	duration      time.Duration
	typeText      string
	ctrlAltDel    bool
	snapshot      string
	snapshotWidth int
}

func New() *cobra.Command {
	var opts options

	cfg, err := config.LoadViewerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load viewer config")
	}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a console session",
		Long: `Connect to a console session and keep the screen up to date until the
session ends or the command is interrupted.

Session settings are read from the environment (CONSOLE_*) and can be
overridden with flags. With --host a new session is created on a running
reference host instead.

Examples:
  # Open a session on a local reference host and type into it
  console-viewer connect --host http://127.0.0.1:8090 --type "hello" --duration 5s

  # Connect to an existing session and save a snapshot on exit
  console-viewer connect --event-url http://host/ajax --update-url http://host/update --snapshot screen.png`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, &cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Session.EventURL, "event-url", cfg.Session.EventURL, "Event submission URL")
	f.StringVar(&cfg.Session.UpdateURL, "update-url", cfg.Session.UpdateURL, "Update polling URL")
	f.StringVar(&cfg.Session.ImageURL, "image-url", cfg.Session.ImageURL, "Initial tile image URL")
	f.StringVar(&cfg.Session.Locale, "locale", cfg.Session.Locale, "Keyboard locale (en-us, en-gb, ja, fr)")
	f.StringVar(&cfg.Session.GuestOS, "guest-os", cfg.Session.GuestOS, "Guest operating system")
	f.IntVar(&cfg.Display.Width, "width", cfg.Display.Width, "Console width in pixels")
	f.IntVar(&cfg.Display.Height, "height", cfg.Display.Height, "Console height in pixels")
	f.DurationVar(&cfg.Timing.Heartbeat, "heartbeat", cfg.Timing.Heartbeat, "Heartbeat interval")
	f.BoolVar(&cfg.Diagnostics, "diagnostics", cfg.Diagnostics, "Arm the diagnostics overlay chord")

	f.StringVar(&opts.host, "host", "", "Create a new session on the reference host at this URL")
	f.DurationVar(&opts.duration, "duration", 0, "Disconnect after this long (0 runs until interrupted)")
	f.StringVar(&opts.typeText, "type", "", "Text to type once connected")
	f.BoolVar(&opts.ctrlAltDel, "ctrl-alt-del", false, "Send Ctrl+Alt+Del once connected")
	f.StringVar(&opts.snapshot, "snapshot", "", "Write a PNG snapshot of the screen to this path on exit")
	f.IntVar(&opts.snapshotWidth, "snapshot-width", 0, "Scale the snapshot down to this width")

	return cmd
}

func run(cmd *cobra.Command, cfg *config.ViewerConfig, opts options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.host != "" {
		info, err := host.NewRemoteSession(ctx, opts.host)
		if err != nil {
			return err
		}
		cfg.Session.EventURL = info.EventURL
		cfg.Session.UpdateURL = info.UpdateURL
		cfg.Display.Width = info.Width
		cfg.Display.Height = info.Height
		cfg.Display.TileWidth = info.TileWidth
		cfg.Display.TileHeight = info.TileHeight
		log.Info().Str("session_id", info.ID).Msg("created console session")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	tr, err := transport.NewHTTPTransport(transport.Options{
		EventURL:           cfg.Session.EventURL,
		Timeout:            cfg.HTTP.Timeout,
		RetryMax:           cfg.HTTP.RetryMax,
		ImageRetryAttempts: cfg.HTTP.ImageRetryAttempts,
		TLSSkipVerify:      cfg.HTTP.TLSSkipVerify,
	})
	if err != nil {
		return err
	}

	v, err := viewer.New(tr, viewerOptions(cfg))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- v.Run(runCtx)
	}()

	if err := sendStartupInput(v, opts); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if opts.duration > 0 {
		timer := time.NewTimer(opts.duration)
		defer timer.Stop()
		timeout = timer.C
	}

	ended := false
	select {
	case err := <-runErr:
		if err != nil {
			return err
		}
		ended = true
	case <-ctx.Done():
	case <-timeout:
	}

	if opts.snapshot != "" {
		if ended {
			log.Warn().Msg("session ended, no snapshot taken")
		} else if err := writeSnapshot(v, opts); err != nil {
			log.Error().Err(err).Msg("failed to write snapshot")
		}
	}

	if !ended {
		cancel()
		<-runErr
	}

	stats, err := v.Stats(context.Background())
	if err != nil {
		return err
	}
	printStats(cmd, stats)
	return nil
}

func viewerOptions(cfg *config.ViewerConfig) viewer.Options {
	return viewer.Options{
		PanelID:              cfg.Session.PanelID,
		ImageURL:             cfg.Session.ImageURL,
		UpdateURL:            cfg.Session.UpdateURL,
		Locale:               cfg.Session.Locale,
		GuestOS:              cfg.Session.GuestOS,
		Browser:              cfg.Session.Browser,
		BrowserVersion:       cfg.Session.BrowserVersion,
		FullImage:            cfg.Display.FullImage,
		Width:                cfg.Display.Width,
		Height:               cfg.Display.Height,
		TileWidth:            cfg.Display.TileWidth,
		TileHeight:           cfg.Display.TileHeight,
		Heartbeat:            cfg.Timing.Heartbeat,
		DoubleClickThreshold: cfg.Timing.DoubleClick,
		ScriptTimeout:        cfg.Timing.ScriptTimeout,
		EnableDiagnostics:    cfg.Diagnostics,
		OnError: func(err error) {
			log.Debug().Err(err).Msg("console viewer error")
		},
		OnSessionEnded: func([]byte) {
			log.Info().Msg("console session ended")
		},
	}
}

func sendStartupInput(v *viewer.Viewer, opts options) error {
	if opts.ctrlAltDel {
		if err := v.SendCtrlAltDel(); err != nil {
			return err
		}
	}
	for _, r := range opts.typeText {
		if err := v.KeyPress(int(r), 0); err != nil {
			return err
		}
	}
	return nil
}

func writeSnapshot(v *viewer.Viewer, opts options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	img, err := v.Thumbnail(ctx, opts.snapshotWidth)
	if err != nil {
		return err
	}

	f, err := os.Create(opts.snapshot)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	log.Info().Str("path", opts.snapshot).Msg("snapshot written")
	return nil
}

func printStats(cmd *cobra.Command, s viewer.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "sent %s events in %s batches (%s)\n",
		humanize.Comma(int64(s.EventsSent)), humanize.Comma(int64(s.BatchesSent)), humanize.Bytes(s.BytesSent))
	fmt.Fprintf(out, "received %s updates from %s polls, %s tiles painted\n",
		humanize.Comma(int64(s.UpdatesApplied)), humanize.Comma(int64(s.Polls)), humanize.Comma(int64(s.TilesPainted)))
	if errs := s.SendErrors + s.PollErrors + s.ImageErrors; errs > 0 {
		fmt.Fprintf(out, "%s errors\n", humanize.Comma(int64(errs)))
	}
}
