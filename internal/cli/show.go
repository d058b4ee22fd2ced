package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sogif-site/internal/app"
)

var (
	showLimit     int
	showSnapshots bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the latest performance periods",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{
			Limit:     showLimit,
			Snapshots: showSnapshots,
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 12, "Number of periods to display")
	showCmd.Flags().BoolVar(&showSnapshots, "snapshots", false, "Also list published snapshots (needs database.dsn)")
}
