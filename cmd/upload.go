package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmedit/internal/logger"
)

var (
	uploadChange  string
	uploadComment string
	uploadDryRun  bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <input.osm>",
	Short: "Upload pending changes as a changeset",
	Long: `Load an OSM file carrying pending changes (action attributes and
negative ids), optionally apply an osmChange file on top, and upload
everything pending as one changeset.`,
	Args: cobra.ExactArgs(1),
	Run:  runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVar(&uploadChange, "change", "", "osmChange file applied before the upload")
	uploadCmd.Flags().StringVarP(&uploadComment, "comment", "m", "", "Changeset comment (required)")
	uploadCmd.Flags().BoolVarP(&uploadDryRun, "dry-run", "n", false, "List the changes without uploading")
	uploadCmd.MarkFlagRequired("comment")
}

func runUpload(cmd *cobra.Command, args []string) {
	log := logger.Get()
	ctx := context.Background()

	env := openSession(ctx, false)
	defer env.close()
	s := env.session

	if _, err := s.Load(ctx, args[0]); err != nil {
		exitWithError("failed to load input", err)
	}
	if uploadChange != "" {
		if _, err := s.ApplyChange(ctx, uploadChange); err != nil {
			exitWithError("failed to apply change file", err)
		}
	}

	if uploadDryRun {
		n := printChanges(s)
		log.Info("Dry run, nothing uploaded", zap.Int("changes", n))
		return
	}

	res, err := s.Upload(ctx, uploadComment)
	if err != nil {
		exitWithError("upload failed", err)
	}
	outf("changeset %d\n", res.ChangesetID)
	for _, d := range res.Diff.Nodes {
		outf("node %d -> %d v%d\n", d.OldID, d.NewID, d.NewVersion)
	}
	for _, d := range res.Diff.Ways {
		outf("way %d -> %d v%d\n", d.OldID, d.NewID, d.NewVersion)
	}
	for _, d := range res.Diff.Relations {
		outf("relation %d -> %d v%d\n", d.OldID, d.NewID, d.NewVersion)
	}
}
