package cli

import (
	"github.com/spf13/cobra"

	"sogif-site/internal/app"
)

var (
	exportDir     string
	exportCSVPath string
	exportPNGPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the performance series as CSV and/or a PNG chart",
	Long: "Export the performance series. Without --csv or --png the CSV is written to the export\n" +
		"directory as sogif-performance-data-<date>.csv.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			Dir:     exportDir,
			CSVPath: exportCSVPath,
			PNGPath: exportPNGPath,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Directory for the default CSV (defaults to config export.dir)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
}
