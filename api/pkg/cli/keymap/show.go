package keymap

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/helixml/consoleviewer/api/pkg/keyboard"
)

var showTable string

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVarP(&showTable, "table", "t", "keycode", "Table to show (keycode, keypress)")
}

var showCmd = &cobra.Command{
	Use:   "show [PROFILE]",
	Short: "Show the translation table of a keyboard profile",
	Long: `Show the translation table of a keyboard profile.

Examples:
  # Key code table of the US profile
  console-viewer keymap show

  # Character table of the French profile
  console-viewer keymap show fr --table keypress`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile := keyboard.ProfileUS
		if len(args) > 0 {
			p, err := keyboard.ParseProfile(args[0])
			if err != nil {
				return err
			}
			profile = p
		}
		km := keyboard.KeymapFor(profile)

		var (
			codes  []int
			lookup func(int) (keyboard.Rule, bool)
		)
		switch showTable {
		case "keycode":
			codes, lookup = km.KeyCodes(), km.KeyCode
		case "keypress":
			codes, lookup = km.KeyPressCodes(), km.KeyPress
		default:
			return fmt.Errorf("unknown table %q, expected keycode or keypress", showTable)
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Code", "Rule")

		for _, code := range codes {
			rule, _ := lookup(code)
			if err := table.Append([]string{strconv.Itoa(code), keyboard.Describe(rule)}); err != nil {
				return err
			}
		}

		if err := table.Render(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s profile (%s), %d entries\n", profile, strategy(profile), len(codes))
		return nil
	},
}

func strategy(p keyboard.Profile) string {
	if p.Raw() {
		return "raw"
	}
	return "cooked"
}
