package cmd

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/script"
	"github.com/wegman-software/osmedit/internal/session"
)

var (
	editScript    string
	editBBox      string
	editOutput    string
	editChange    string
	expireOutput  string
	expireMinZoom int
	expireMaxZoom int
)

var editCmd = &cobra.Command{
	Use:   "edit <input.osm> [more inputs...]",
	Short: "Edit OSM data with a Lua gesture script",
	Long: `Load one or more OSM files, run a Lua script against the editor and
write the result.

The script sees an 'editor' table with gestures (long_click, click,
element_click, menu, undo), view controls (set_view, pan, zoom_in,
zoom_out) and queries (node, way, relation, selected, changes, count).
Dialogs are answered by the optional globals on_tag_edit(element, preset),
on_confirm(prompt) and on_bug(lat, lon).

Screen coordinates refer to the view given by --bbox, or to the bounds of
the loaded data.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().StringVarP(&editScript, "script", "s", "", "Lua edit script (required)")
	editCmd.Flags().StringVarP(&editBBox, "bbox", "b", "", "View box: minlon,minlat,maxlon,maxlat")
	editCmd.Flags().StringVarP(&editOutput, "output", "o", "", "Write the edited data as OSM XML")
	editCmd.Flags().StringVar(&editChange, "change", "", "Write the pending changes as osmChange")
	addExpireFlags(editCmd)
	editCmd.MarkFlagRequired("script")
}

func addExpireFlags(c *cobra.Command) {
	c.Flags().StringVarP(&expireOutput, "expire-output", "e", "", "Path to expire tiles output file")
	c.Flags().IntVar(&expireMinZoom, "expire-min-zoom", cfg.ExpireMinZoom, "Minimum zoom level for tile expiry")
	c.Flags().IntVar(&expireMaxZoom, "expire-max-zoom", cfg.ExpireMaxZoom, "Maximum zoom level for tile expiry")
}

func runEdit(cmd *cobra.Command, args []string) {
	log := logger.Get()
	ctx := context.Background()
	start := time.Now()

	env := openSession(ctx, false)
	defer env.close()
	s := env.session

	res, err := s.Load(ctx, args...)
	if err != nil {
		exitWithError("failed to load input", err)
	}
	log.Info("Input loaded",
		zap.Strings("files", args),
		zap.Int64("elements", res.Read.Total()),
		zap.Int("missing_way_nodes", res.Build.MissingWayNodes))
	env.focusView(editBBox)

	rt := script.NewRuntime(os.Stdout)
	defer rt.Close()
	rt.Bind(s.Logic())
	if err := rt.LoadFile(editScript); err != nil {
		exitWithError("edit script failed", err)
	}
	for _, note := range rt.Notes() {
		log.Info("Script notice", zap.String("message", note))
	}

	targets := session.Targets{
		XMLPath:       editOutput,
		ChangePath:    editChange,
		ExpirePath:    expireOutput,
		ExpireMinZoom: expireMinZoom,
		ExpireMaxZoom: expireMaxZoom,
	}
	saved, err := s.Save(ctx, targets).Wait()
	if err != nil {
		exitWithError("failed to write output", err)
	}

	log.Info("Edit complete",
		zap.Int("changes", saved.Changes),
		zap.Int("expired_tiles", saved.ExpiredTiles),
		zap.Int("bugs", len(rt.Manager().Bugs())),
		zap.Duration("total_time", time.Since(start).Round(time.Millisecond)))
}
