package cli

import (
	"github.com/spf13/cobra"

	"sogif-site/internal/app"
)

var (
	publishFile   string
	publishSource string
	publishDryRun bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Validate a constants document and store it as the newest snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Publish(cmd.Context(), app.PublishOptions{
			File:   publishFile,
			Source: publishSource,
			DryRun: publishDryRun,
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Migrate(cmd.Context())
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishFile, "file", "", "JSON or YAML constants document")
	publishCmd.Flags().StringVar(&publishSource, "source", "", "Label stored with the snapshot (defaults to the file name)")
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "Validate only")
	_ = publishCmd.MarkFlagRequired("file")
}
