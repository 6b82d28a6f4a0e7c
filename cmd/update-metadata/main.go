package main

import (
	"context"
	"flag"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"filer-api/internal/config"
	"filer-api/internal/logger"
	"filer-api/internal/models"
	"filer-api/internal/server"
	"filer-api/internal/services"
	"filer-api/internal/utils"
)

type stats struct {
	updated, skipped, fetched, errors int
}

type options struct {
	onlyMissing bool
	dryRun      bool
	fetch       bool
}

// dryRunExif reads EXIF from disk but only logs the writes it would make.
type dryRunExif struct {
	utils.ExifTool
	lg zerolog.Logger
}

func (d dryRunExif) SetExifSubjectLocation(p models.Point, _ io.Reader, destPath string) error {
	d.lg.Info().Str("path", destPath).Str("subjectLocation", p.String()).Msg("[DRY] Would write EXIF")
	return nil
}

// Reports whether any derived field is still empty.
func needsDerivation(rec *models.ImageRecord) bool {
	return rec.DateTaken == nil || rec.WidthPx == nil || rec.HeightPx == nil
}

// Re-derives metadata for every record and writes the result back.
func processImages(
	ctx context.Context,
	lg zerolog.Logger,
	svcs *server.Services,
	images []*models.ImageRecord,
	opts options,
	st *stats,
) {
	deriver := svcs.Deriver
	if opts.dryRun {
		deriver = services.NewMetadataDeriver(dryRunExif{lg: lg})
	}

	for _, img := range images {
		if opts.onlyMissing && !needsDerivation(img) {
			lg.Debug().Str("id", img.ID).Msg("Skipping, metadata complete")
			st.skipped++
			continue
		}

		asset := svcs.Assets.Resolve(img.StoragePath)
		if asset == nil {
			lg.Warn().Str("id", img.ID).Msg("Record has no storage path")
			st.errors++
			continue
		}

		if opts.fetch && !asset.Exists() && !opts.dryRun {
			if err := svcs.Storage.DownloadTo(ctx, img.StoragePath, asset.Path()); err != nil {
				lg.Error().Err(err).Str("id", img.ID).Str("path", img.StoragePath).Msg("Failed to fetch from storage")
				st.errors++
				continue
			}
			st.fetched++
		}

		if opts.dryRun {
			deriver.OnSave(img, asset)
			lg.Info().Str("id", img.ID).Int("width", img.Width()).Int("height", img.Height()).
				Time("dateTaken", *img.DateTaken).Msg("[DRY] Would update")
			st.updated++
			continue
		}

		if err := deriver.Save(ctx, svcs.Firestore, img, asset); err != nil {
			lg.Error().Err(err).Str("id", img.ID).Msg("Failed to save")
			st.errors++
			continue
		}

		lg.Info().Str("id", img.ID).Str("label", img.Label()).Msg("Updated")
		st.updated++
	}
}

func main() {
	onlyMissing := flag.Bool("only-missing", false, "Only update records missing date or dimensions")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing to Firestore or assets")
	fetch := flag.Bool("fetch", false, "Download assets missing under MEDIA_ROOT from Cloud Storage")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.LogLevel, true)
	lg := log.With().Str("component", "update-metadata").Logger()

	if *dryRun {
		lg.Info().Msg("DRY RUN - no writes")
	}

	ctx := context.Background()

	svcs, err := server.InitServices(ctx, cfg)
	if err != nil {
		lg.Fatal().Err(err).Msg("init services")
	}
	defer svcs.Close()

	images, err := svcs.Firestore.ListImageRecords(ctx, 0, 0)
	if err != nil {
		lg.Fatal().Err(err).Msg("list images")
	}

	start := time.Now()
	var st stats
	processImages(ctx, lg, svcs, images, options{onlyMissing: *onlyMissing, dryRun: *dryRun, fetch: *fetch}, &st)

	lg.Info().
		Int("updated", st.updated).
		Int("skipped", st.skipped).
		Int("fetched", st.fetched).
		Int("errors", st.errors).
		Dur("took", time.Since(start)).
		Msg("Done")
}
