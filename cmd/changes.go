package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmedit/internal/logger"
)

var changesCmd = &cobra.Command{
	Use:   "changes <input.osm> [osmChange files...]",
	Short: "List the pending changes of OSM data",
	Long: `Load an OSM file, apply any further osmChange files in order and print
one line per created, modified or deleted element.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runChanges,
}

func init() {
	rootCmd.AddCommand(changesCmd)
}

func runChanges(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	env := openSession(ctx, false)
	defer env.close()
	s := env.session

	if _, err := s.Load(ctx, args[0]); err != nil {
		exitWithError("failed to load input", err)
	}
	for _, change := range args[1:] {
		if _, err := s.ApplyChange(ctx, change); err != nil {
			exitWithError("failed to apply change file", err)
		}
	}
	n := printChanges(s)
	logger.Get().Info("Pending changes", zap.Int("count", n))
}
