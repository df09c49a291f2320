package hostcmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helixml/consoleviewer/api/pkg/config"
	"github.com/helixml/consoleviewer/api/pkg/host"
)

func New() *cobra.Command {
	cfg, err := config.LoadHostConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load host config")
	}

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Run a reference console host",
		Long: `Run a console host that speaks the viewer's event and update protocol.

The host paints a test pattern, records every event it receives and marks
mouse presses on the screen so a connected viewer can be checked end to end.
Create a session with POST /console/sessions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := host.NewServer(host.Options{
				Width:      cfg.Width,
				Height:     cfg.Height,
				TileWidth:  cfg.TileWidth,
				TileHeight: cfg.TileHeight,
				LongPoll:   cfg.LongPoll,
				SessionTTL: cfg.SessionTTL,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("sessions_url", "http://"+cfg.ListenAddress+host.APIPrefix+"/sessions").
				Msg("create sessions with a POST to this URL")

			return srv.ListenAndServe(ctx, cfg.ListenAddress)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.ListenAddress, "listen", cfg.ListenAddress, "Address to listen on")
	f.IntVar(&cfg.Width, "width", cfg.Width, "Screen width in pixels")
	f.IntVar(&cfg.Height, "height", cfg.Height, "Screen height in pixels")
	f.DurationVar(&cfg.LongPoll, "long-poll", cfg.LongPoll, "How long update requests wait for changes")
	f.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Remove sessions idle for longer than this")

	return cmd
}
