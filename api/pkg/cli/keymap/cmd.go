package keymap

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "keymap",
	Short:   "Inspect keyboard profiles",
	Aliases: []string{"keymaps", "km"},
	Long:    `Inspect the built-in keyboard profiles and trace how local key events are translated into remote key events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showCmd.RunE(cmd, args)
	},
}

func New() *cobra.Command {
	return rootCmd
}
