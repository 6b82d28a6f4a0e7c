package models

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// SidebarImageWidth is the pixel width of the admin sidebar preview.
const SidebarImageWidth = 210

const (
	FileTypeImage = "image"

	unnamedLabel = "unnamed file"
	mediaPrefix  = "/media/"
)

// Asset is the binary file behind a record.
type Asset interface {
	Open() (io.ReadCloser, error)
	Path() string
	Width() (int, error)
	Height() (int, error)
	Size() (int64, error)
	URL() (string, error)
	ExtraThumbnails() (map[string]string, error)
}

// ExifTags maps an EXIF tag name to its value rendered as a string.
// Multi-valued integer tags are comma separated ("100,200").
type ExifTags map[string]string

// FileRecord is the generic stored file.
type FileRecord struct {
	ID               string    `firestore:"id,omitempty" json:"id"`
	Name             string    `firestore:"name" json:"name"`
	OriginalFilename string    `firestore:"originalFilename" json:"originalFilename"`
	StoragePath      string    `firestore:"storagePath" json:"storagePath"`
	ContentType      string    `firestore:"contentType" json:"contentType"`
	FileType         string    `firestore:"fileType" json:"fileType"`
	OwnerID          string    `firestore:"ownerId,omitempty" json:"ownerId,omitempty"`
	FolderID         string    `firestore:"folderId,omitempty" json:"folderId,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt        time.Time `firestore:"updatedAt,omitempty" json:"updatedAt"`

	File Asset `firestore:"-" json:"-"`
}

// ImageRecord is a FileRecord carrying image metadata.
type ImageRecord struct {
	FileRecord

	WidthPx  *int `firestore:"width,omitempty" json:"-"`
	HeightPx *int `firestore:"height,omitempty" json:"-"`

	DateTaken       *time.Time `firestore:"dateTaken,omitempty" json:"dateTaken,omitempty"`
	SubjectLocation string     `firestore:"subjectLocation,omitempty" json:"subjectLocation,omitempty"`

	DefaultAltText string `firestore:"defaultAltText,omitempty" json:"defaultAltText,omitempty"`
	DefaultCaption string `firestore:"defaultCaption,omitempty" json:"defaultCaption,omitempty"`
	Author         string `firestore:"author,omitempty" json:"author,omitempty"`

	MustAlwaysPublishAuthorCredit bool `firestore:"mustAlwaysPublishAuthorCredit" json:"mustAlwaysPublishAuthorCredit"`
	MustAlwaysPublishCopyright    bool `firestore:"mustAlwaysPublishCopyright" json:"mustAlwaysPublishCopyright"`

	HasAllMandatoryData bool `firestore:"hasAllMandatoryData" json:"hasAllMandatoryData"`

	exif       ExifTags
	thumbnails map[string]string
}

// ImageResponse is the JSON view of an image served by the API.
type ImageResponse struct {
	ID                            string            `json:"id"`
	Label                         string            `json:"label"`
	URL                           string            `json:"url"`
	RelativeURL                   string            `json:"relativeUrl"`
	Width                         int               `json:"width"`
	Height                        int               `json:"height"`
	Size                          int64             `json:"size"`
	SidebarImageRatio             float64           `json:"sidebarImageRatio"`
	DateTaken                     *time.Time        `json:"dateTaken,omitempty"`
	SubjectLocation               string            `json:"subjectLocation,omitempty"`
	DefaultAltText                string            `json:"defaultAltText,omitempty"`
	DefaultCaption                string            `json:"defaultCaption,omitempty"`
	Author                        string            `json:"author,omitempty"`
	MustAlwaysPublishAuthorCredit bool              `json:"mustAlwaysPublishAuthorCredit"`
	MustAlwaysPublishCopyright    bool              `json:"mustAlwaysPublishCopyright"`
	HasAllMandatoryData           bool              `json:"hasAllMandatoryData"`
	Thumbnails                    map[string]string `json:"thumbnails,omitempty"`
}

// ImageUpdate holds the user editable fields of an image. Nil fields are left alone.
type ImageUpdate struct {
	Name                          *string `json:"name"`
	SubjectLocation               *string `json:"subjectLocation"`
	DefaultAltText                *string `json:"defaultAltText"`
	DefaultCaption                *string `json:"defaultCaption"`
	Author                        *string `json:"author"`
	MustAlwaysPublishAuthorCredit *bool   `json:"mustAlwaysPublishAuthorCredit"`
	MustAlwaysPublishCopyright    *bool   `json:"mustAlwaysPublishCopyright"`
}

// Point is a pixel coordinate inside an image.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// ParsePoint reads "x,y". Anything after the second component is ignored.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return Point{}, fmt.Errorf("invalid point %q: want \"x,y\"", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Point{}, fmt.Errorf("invalid x in %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Point{}, fmt.Errorf("invalid y in %q: %w", s, err)
	}
	return Point{X: x, Y: y}, nil
}

// CheckValidity reports whether all mandatory fields are filled in.
func (img *ImageRecord) CheckValidity() bool {
	return img.Name != ""
}

func (img *ImageRecord) Width() int {
	if img.WidthPx == nil {
		return 0
	}
	return *img.WidthPx
}

func (img *ImageRecord) Height() int {
	if img.HeightPx == nil {
		return 0
	}
	return *img.HeightPx
}

// SidebarImageRatio is the scale factor between the stored width and the sidebar preview.
func (img *ImageRecord) SidebarImageRatio() float64 {
	if w := img.Width(); w != 0 {
		return float64(w) / float64(SidebarImageWidth)
	}
	return 1.0
}

// Size returns the byte size of the asset, or 0 when it can't be read.
func (img *ImageRecord) Size() int64 {
	if img.File == nil {
		return 0
	}
	size, err := img.File.Size()
	if err != nil {
		return 0
	}
	return size
}

func (img *ImageRecord) Label() string {
	if img.Name != "" {
		return img.Name
	}
	if img.OriginalFilename != "" {
		return img.OriginalFilename
	}
	return unnamedLabel
}

// URL returns the public URL of the asset, or "" if it can't be resolved.
func (img *ImageRecord) URL() string {
	if img.File == nil {
		return ""
	}
	u, err := img.File.URL()
	if err != nil {
		return ""
	}
	return u
}

func (img *ImageRecord) AbsoluteImageURL() string {
	return img.URL()
}

// RelativeImageURL returns the asset URL relative to the media root.
func (img *ImageRecord) RelativeImageURL() string {
	if img.File == nil {
		return ""
	}
	u, err := img.File.URL()
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u, mediaPrefix)
}

// Exif returns the memoized EXIF tags, calling load on first use.
// A nil result from load is stored as an empty map.
func (img *ImageRecord) Exif(load func() ExifTags) ExifTags {
	if img.exif == nil {
		tags := load()
		if tags == nil {
			tags = ExifTags{}
		}
		img.exif = tags
	}
	return img.exif
}

func (img *ImageRecord) InvalidateExif() {
	img.exif = nil
}

// Thumbnails returns the memoized thumbnail URLs by name.
func (img *ImageRecord) Thumbnails() map[string]string {
	if img.thumbnails != nil {
		return img.thumbnails
	}
	tns := map[string]string{}
	if img.File != nil {
		if extra, err := img.File.ExtraThumbnails(); err == nil {
			for name, u := range extra {
				tns[name] = u
			}
		}
	}
	img.thumbnails = tns
	return tns
}

func (img *ImageRecord) InvalidateThumbnails() {
	img.thumbnails = nil
}

// Clone copies the record without its memoized caches.
func (img *ImageRecord) Clone() *ImageRecord {
	c := *img
	c.exif = nil
	c.thumbnails = nil
	if img.WidthPx != nil {
		w := *img.WidthPx
		c.WidthPx = &w
	}
	if img.HeightPx != nil {
		h := *img.HeightPx
		c.HeightPx = &h
	}
	if img.DateTaken != nil {
		d := *img.DateTaken
		c.DateTaken = &d
	}
	return &c
}

// Apply copies the non-nil fields of u onto the record.
func (img *ImageRecord) Apply(u ImageUpdate) {
	if u.Name != nil {
		img.Name = *u.Name
	}
	if u.SubjectLocation != nil {
		img.SubjectLocation = *u.SubjectLocation
	}
	if u.DefaultAltText != nil {
		img.DefaultAltText = *u.DefaultAltText
	}
	if u.DefaultCaption != nil {
		img.DefaultCaption = *u.DefaultCaption
	}
	if u.Author != nil {
		img.Author = *u.Author
	}
	if u.MustAlwaysPublishAuthorCredit != nil {
		img.MustAlwaysPublishAuthorCredit = *u.MustAlwaysPublishAuthorCredit
	}
	if u.MustAlwaysPublishCopyright != nil {
		img.MustAlwaysPublishCopyright = *u.MustAlwaysPublishCopyright
	}
}

// Response builds the API view of the record.
func (img *ImageRecord) Response() ImageResponse {
	return ImageResponse{
		ID:                            img.ID,
		Label:                         img.Label(),
		URL:                           img.URL(),
		RelativeURL:                   img.RelativeImageURL(),
		Width:                         img.Width(),
		Height:                        img.Height(),
		Size:                          img.Size(),
		SidebarImageRatio:             img.SidebarImageRatio(),
		DateTaken:                     img.DateTaken,
		SubjectLocation:               img.SubjectLocation,
		DefaultAltText:                img.DefaultAltText,
		DefaultCaption:                img.DefaultCaption,
		Author:                        img.Author,
		MustAlwaysPublishAuthorCredit: img.MustAlwaysPublishAuthorCredit,
		MustAlwaysPublishCopyright:    img.MustAlwaysPublishCopyright,
		HasAllMandatoryData:           img.HasAllMandatoryData,
		Thumbnails:                    img.Thumbnails(),
	}
}
