package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmedit/internal/config"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/session"
)

var (
	downloadBBox   string
	downloadOutput string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download an area from the OSM API",
	Long: `Fetch all elements inside a bounding box from the OSM API and write
them as OSM XML with the box as bounds.`,
	Args: cobra.NoArgs,
	Run:  runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&downloadBBox, "bbox", "b", "", "Area to download: minlon,minlat,maxlon,maxlat (required)")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "Output OSM XML file (required)")
	downloadCmd.MarkFlagRequired("bbox")
	downloadCmd.MarkFlagRequired("output")
}

func runDownload(cmd *cobra.Command, args []string) {
	log := logger.Get()
	ctx := context.Background()

	b, err := config.ParseBBox(downloadBBox)
	if err != nil {
		exitWithError("invalid bbox", err)
	}
	box, err := b.E7()
	if err != nil {
		exitWithError("invalid bbox", err)
	}

	env := openSession(ctx, false)
	defer env.close()

	res, err := env.session.Download(ctx, box)
	if err != nil {
		exitWithError("download failed", err)
	}
	if _, err := env.session.Save(ctx, session.Targets{XMLPath: downloadOutput}).Wait(); err != nil {
		exitWithError("failed to write output", err)
	}
	log.Info("Download complete",
		zap.String("bbox", box.String()),
		zap.String("output", downloadOutput),
		zap.Int64("elements", res.Read.Total()))
}
