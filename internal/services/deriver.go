package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "filer-api/internal/errors"
	"filer-api/internal/models"
	"filer-api/internal/utils"
)

// ExifTool reads and rewrites EXIF data on disk.
type ExifTool interface {
	ExifForFile(path string) (models.ExifTags, error)
	SetExifSubjectLocation(p models.Point, src io.Reader, destPath string) error
}

// RecordSaver persists the generic file fields of a record.
type RecordSaver interface {
	SaveImageRecord(ctx context.Context, rec *models.ImageRecord) error
}

// MetadataDeriver fills in the fields of an image record that come from
// its binary asset. Every step tolerates a missing or broken asset.
type MetadataDeriver struct {
	exif   ExifTool
	now    func() time.Time
	logger zerolog.Logger
}

func NewMetadataDeriver(exif ExifTool) *MetadataDeriver {
	return &MetadataDeriver{
		exif:   exif,
		now:    time.Now,
		logger: log.With().Str("component", "deriver").Logger(),
	}
}

// OnSave derives metadata into rec. A non-nil asset replaces rec.File.
func (d *MetadataDeriver) OnSave(rec *models.ImageRecord, asset models.Asset) {
	if asset != nil {
		rec.File = asset
	}

	if rec.DateTaken == nil {
		if t, err := utils.ParseExifDateTime(d.exifFor(rec)[utils.TagDateTimeOriginal]); err == nil {
			rec.DateTaken = &t
		}
	}
	if rec.DateTaken == nil {
		now := d.now()
		rec.DateTaken = &now
	}

	rec.HasAllMandatoryData = rec.CheckValidity()

	if err := d.reconcileSubjectLocation(rec); err != nil {
		d.logger.Debug().Err(err).Str("id", rec.ID).Msg("Subject location not written")
	}

	if err := d.deriveDimensions(rec); err != nil {
		d.logger.Debug().Err(err).Str("id", rec.ID).Msg("Dimensions not read")
	}
}

// Save derives metadata and then persists the record through base.
func (d *MetadataDeriver) Save(ctx context.Context, base RecordSaver, rec *models.ImageRecord, asset models.Asset) error {
	d.OnSave(rec, asset)
	return base.SaveImageRecord(ctx, rec)
}

func (d *MetadataDeriver) exifFor(rec *models.ImageRecord) models.ExifTags {
	return rec.Exif(func() models.ExifTags {
		if rec.File == nil {
			return nil
		}
		tags, err := d.exif.ExifForFile(rec.File.Path())
		if err != nil {
			d.logger.Debug().Err(err).Str("path", rec.File.Path()).Msg("No EXIF data")
			return nil
		}
		return tags
	})
}

// Writes the record's subject location into the asset's EXIF data when
// the two differ. The record field is never changed.
func (d *MetadataDeriver) reconcileSubjectLocation(rec *models.ImageRecord) error {
	if rec.SubjectLocation == "" {
		return nil
	}
	p, err := models.ParsePoint(rec.SubjectLocation)
	if err != nil {
		return err
	}
	if rec.File == nil {
		return apperrors.ErrNoAsset
	}
	if current, ok := utils.ParseSubjectLocation(d.exifFor(rec)); ok && current == p {
		return nil
	}

	src, err := rec.File.Open()
	if err != nil {
		return fmt.Errorf("failed to open asset: %w", err)
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		return fmt.Errorf("failed to read asset: %w", err)
	}

	if err := d.exif.SetExifSubjectLocation(p, bytes.NewReader(data), rec.File.Path()); err != nil {
		return err
	}
	rec.InvalidateExif()
	return nil
}

// Dimensions are only stored when both can be read.
func (d *MetadataDeriver) deriveDimensions(rec *models.ImageRecord) error {
	if rec.File == nil {
		return apperrors.ErrNoAsset
	}
	w, err := rec.File.Width()
	if err != nil {
		return err
	}
	h, err := rec.File.Height()
	if err != nil {
		return err
	}
	rec.WidthPx = &w
	rec.HeightPx = &h
	return nil
}
