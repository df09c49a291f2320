package consoleviewer

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helixml/consoleviewer/api/pkg/cli/connect"
	"github.com/helixml/consoleviewer/api/pkg/cli/hostcmd"
	"github.com/helixml/consoleviewer/api/pkg/cli/keymap"
	"github.com/helixml/consoleviewer/api/pkg/config"
)

var Fatal = FatalErrorHandler

func NewRootCmd() *cobra.Command {
	var logLevel string

	RootCmd := &cobra.Command{
		Use:   getCommandLineExecutable(),
		Short: "Console viewer",
		Long: `Remote console viewer for tile-based screen sharing sessions.

Environment variables:
` + generateEnvHelpText(&config.ViewerConfig{}, "") + generateEnvHelpText(&config.HostConfig{}, ""),
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(logLevel)
		},
	}

	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", getDefaultOptionString("LOG_LEVEL", "info"), "Log level (trace, debug, info, warn, error)")

	RootCmd.AddCommand(connect.New())
	RootCmd.AddCommand(hostcmd.New())
	RootCmd.AddCommand(keymap.New())
	RootCmd.AddCommand(newVersionCommand())

	return RootCmd
}

func Execute() {
	RootCmd := NewRootCmd()
	RootCmd.SetContext(context.Background())
	RootCmd.SetOutput(os.Stdout)

	if err := RootCmd.Execute(); err != nil {
		Fatal(RootCmd, err.Error(), 1)
	}
}

func setupLogging(logLevel string) {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
