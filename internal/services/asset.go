package services

import (
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"filer-api/internal/models"
	"filer-api/internal/utils"
)

const (
	SidebarPreviewName = "admin_sidebar_preview"
	thumbnailDir       = "_thumbnails"
)

// AssetStore maps storage paths to files under a local media root.
type AssetStore struct {
	mediaRoot string
	mediaURL  string
}

func NewAssetStore(mediaRoot, mediaURL string) *AssetStore {
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return &AssetStore{
		mediaRoot: mediaRoot,
		mediaURL:  mediaURL,
	}
}

// Resolve returns the asset stored at storagePath, or nil for an empty path.
func (s *AssetStore) Resolve(storagePath string) *LocalAsset {
	if storagePath == "" {
		return nil
	}
	clean := path.Clean("/" + filepath.ToSlash(storagePath))[1:]
	return &LocalAsset{
		store: s,
		name:  clean,
		path:  filepath.Join(s.mediaRoot, filepath.FromSlash(clean)),
	}
}

// Attach resolves the record's asset and sets it on the record.
func (s *AssetStore) Attach(rec *models.ImageRecord) {
	if a := s.Resolve(rec.StoragePath); a != nil {
		rec.File = a
	}
}

func (s *AssetStore) url(name string) string {
	return s.mediaURL + name
}

// LocalAsset is a file on disk below the media root.
type LocalAsset struct {
	store *AssetStore
	name  string
	path  string

	once   sync.Once
	config image.Config
	cfgErr error
}

func (a *LocalAsset) Open() (io.ReadCloser, error) {
	return os.Open(a.path)
}

func (a *LocalAsset) Path() string {
	return a.path
}

func (a *LocalAsset) Exists() bool {
	_, err := os.Stat(a.path)
	return err == nil
}

func (a *LocalAsset) Size() (int64, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (a *LocalAsset) URL() (string, error) {
	if a.store == nil {
		return "", fmt.Errorf("asset %s has no store", a.name)
	}
	return a.store.url(a.name), nil
}

func (a *LocalAsset) Width() (int, error) {
	cfg, err := a.dimensions()
	if err != nil {
		return 0, err
	}
	return cfg.Width, nil
}

func (a *LocalAsset) Height() (int, error) {
	cfg, err := a.dimensions()
	if err != nil {
		return 0, err
	}
	return cfg.Height, nil
}

// Reads the image header once per asset.
func (a *LocalAsset) dimensions() (image.Config, error) {
	a.once.Do(func() {
		f, err := os.Open(a.path)
		if err != nil {
			a.cfgErr = err
			return
		}
		defer f.Close()

		if utils.IsHeifLike(a.name) {
			a.config, a.cfgErr = utils.HeicConfig(f)
			return
		}
		a.config, _, a.cfgErr = image.DecodeConfig(f)
	})
	return a.config, a.cfgErr
}

// ExtraThumbnails returns the sidebar preview, rendering it on first use.
func (a *LocalAsset) ExtraThumbnails() (map[string]string, error) {
	name := a.thumbnailName(models.SidebarImageWidth)
	dst := filepath.Join(a.store.mediaRoot, filepath.FromSlash(name))

	if _, err := os.Stat(dst); err != nil {
		if err := a.renderThumbnail(dst, models.SidebarImageWidth); err != nil {
			return nil, err
		}
	}

	return map[string]string{SidebarPreviewName: a.store.url(name)}, nil
}

func (a *LocalAsset) thumbnailName(width int) string {
	ext := path.Ext(a.name)
	base := strings.TrimSuffix(a.name, ext)
	return fmt.Sprintf("%s/%s__%d.jpg", thumbnailDir, base, width)
}

func (a *LocalAsset) renderThumbnail(dst string, width int) error {
	var (
		img image.Image
		err error
	)
	if utils.IsHeifLike(a.name) {
		data, readErr := os.ReadFile(a.path)
		if readErr != nil {
			return readErr
		}
		img, err = utils.DecodeHeic(data)
	} else {
		img, err = imaging.Open(a.path, imaging.AutoOrientation(true))
	}
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)
	return imaging.Save(thumb, dst, imaging.JPEGQuality(85))
}
