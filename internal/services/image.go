package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"filer-api/internal/errors"
	"filer-api/internal/models"
)

// ImageStore is the persistence the image service needs.
type ImageStore interface {
	RecordSaver
	models.FolderLookup
	GetImageRecord(ctx context.Context, id string) (*models.ImageRecord, error)
	ListImageRecords(ctx context.Context, limit int, page int) ([]*models.ImageRecord, error)
}

type ImageService struct {
	store   ImageStore
	cache   *CacheService
	assets  *AssetStore
	deriver *MetadataDeriver
}

func NewImageService(store ImageStore, cache *CacheService, assets *AssetStore, deriver *MetadataDeriver) *ImageService {
	return &ImageService{
		store:   store,
		cache:   cache,
		assets:  assets,
		deriver: deriver,
	}
}

// Loads a record from cache or Firestore with its asset attached.
func (s *ImageService) load(ctx context.Context, id string) (*models.ImageRecord, error) {
	if rec, ok := s.cache.Get(id); ok {
		log.Debug().Str("component", "image").Str("id", id).Msg("Cache hit")
		return rec, nil
	}

	rec, err := s.store.GetImageRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get image %s: %w", id, err)
	}
	s.assets.Attach(rec)
	s.cache.Set(rec)

	return rec, nil
}

// GetImage returns the record if user may read it.
func (s *ImageService) GetImage(ctx context.Context, id string, user *models.User) (*models.ImageRecord, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.HasReadPermission(ctx, s.store, user) {
		return nil, errors.ErrPermissionDenied
	}
	return rec, nil
}

// ListImages returns a page of records, keeping only those user may read.
func (s *ImageService) ListImages(ctx context.Context, user *models.User, limit int, page int) ([]*models.ImageRecord, error) {
	records, err := s.store.ListImageRecords(ctx, limit, page)
	if err != nil {
		return nil, err
	}

	visible := make([]*models.ImageRecord, 0, len(records))
	for _, rec := range records {
		if !rec.HasReadPermission(ctx, s.store, user) {
			continue
		}
		s.assets.Attach(rec)
		visible = append(visible, rec)
	}
	return visible, nil
}

// SaveImage derives metadata and persists rec. Existing records need edit
// permission; new ones need an authenticated staff user.
func (s *ImageService) SaveImage(ctx context.Context, rec *models.ImageRecord, user *models.User) error {
	if rec.ID != "" {
		if !rec.HasEditPermission(ctx, s.store, user) {
			return errors.ErrPermissionDenied
		}
	} else if !user.IsAuthenticated() || !user.IsStaff {
		return errors.ErrPermissionDenied
	}

	if rec.File == nil {
		s.assets.Attach(rec)
	}
	if err := s.deriver.Save(ctx, s.store, rec, nil); err != nil {
		return err
	}
	rec.InvalidateThumbnails()
	s.cache.Invalidate(rec.ID)

	log.Info().Str("component", "image").Str("id", rec.ID).Str("label", rec.Label()).Msg("Saved image")
	return nil
}

// UpdateImage applies the editable fields to a stored record and saves it.
func (s *ImageService) UpdateImage(ctx context.Context, id string, update models.ImageUpdate, user *models.User) (*models.ImageRecord, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Apply(update)
	if err := s.SaveImage(ctx, rec, user); err != nil {
		return nil, err
	}
	return rec, nil
}
