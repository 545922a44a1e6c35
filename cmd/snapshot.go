package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/session"
)

var (
	snapshotLabel  string
	snapshotOutput string
	snapshotChange string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Store and restore editing sessions in PostgreSQL",
	Long: `Snapshots keep a whole data set, including pending changes, deleted
elements and the original download box, in PostgreSQL tables.

Requires --database-url (or database_url in the config file).`,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <input.osm> [more inputs...]",
	Short: "Load OSM files and store them as a snapshot",
	Args:  cobra.MinimumNArgs(1),
	Run:   runSnapshotSave,
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load <snapshot-id>",
	Short: "Restore a snapshot into OSM XML and osmChange files",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotLoad,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	Run:   runSnapshotList,
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotDelete,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotLoadCmd, snapshotListCmd, snapshotDeleteCmd)

	snapshotSaveCmd.Flags().StringVarP(&snapshotLabel, "label", "l", "", "Snapshot label")
	snapshotLoadCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "Write the data as OSM XML")
	snapshotLoadCmd.Flags().StringVar(&snapshotChange, "change", "", "Write the pending changes as osmChange")
}

func parseSnapshotID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		exitWithError("invalid snapshot id", err)
	}
	return id
}

func runSnapshotSave(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	env := openSession(ctx, true)
	defer env.close()

	if err := env.store.EnsureSchema(ctx); err != nil {
		exitWithError("failed to prepare snapshot tables", err)
	}
	if _, err := env.session.Load(ctx, args...); err != nil {
		exitWithError("failed to load input", err)
	}

	label := snapshotLabel
	if label == "" {
		label = time.Now().Format(time.RFC3339)
	}
	res, err := env.session.Save(ctx, session.Targets{Snapshot: true, SnapshotLabel: label}).Wait()
	if err != nil {
		exitWithError("failed to save snapshot", err)
	}
	outf("%s\n", res.SnapshotID)
	logger.Get().Info("Snapshot stored",
		zap.String("id", res.SnapshotID.String()),
		zap.Int("changes", res.Changes))
}

func runSnapshotLoad(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	id := parseSnapshotID(args[0])

	env := openSession(ctx, true)
	defer env.close()

	if _, err := env.session.LoadSnapshot(ctx, id); err != nil {
		exitWithError("failed to load snapshot", err)
	}
	if snapshotOutput == "" && snapshotChange == "" {
		printChanges(env.session)
		return
	}
	targets := session.Targets{XMLPath: snapshotOutput, ChangePath: snapshotChange}
	if _, err := env.session.Save(ctx, targets).Wait(); err != nil {
		exitWithError("failed to write output", err)
	}
}

func runSnapshotList(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	env := openSession(ctx, true)
	defer env.close()

	snapshots, err := env.store.List(ctx)
	if err != nil {
		exitWithError("failed to list snapshots", err)
	}
	for _, s := range snapshots {
		outf("%s\t%s\t%s\tnodes=%d ways=%d relations=%d changes=%d\n",
			s.ID, s.CreatedAt.Format(time.RFC3339), s.Label,
			s.Nodes, s.Ways, s.Relations, s.Changes)
	}
}

func runSnapshotDelete(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	id := parseSnapshotID(args[0])

	env := openSession(ctx, true)
	defer env.close()

	if err := env.store.Delete(ctx, id); err != nil {
		exitWithError("failed to delete snapshot", err)
	}
	logger.Get().Info("Snapshot deleted", zap.String("id", id.String()))
}
