package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	dexif "github.com/dsoprea/go-exif/v3"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"filer-api/internal/models"
)

const (
	TagDateTimeOriginal = string(exif.DateTimeOriginal)
	TagSubjectLocation  = string(exif.SubjectLocation)

	// EXIF DateTimeOriginal is "2006:01:02 15:04:05", no zone.
	exifDateLayout = "2006:01:02 15:04:05"

	exifIfdPath = "IFD/Exif"
)

// ExifTool reads and writes EXIF data of files on disk.
type ExifTool struct{}

func (ExifTool) ExifForFile(path string) (models.ExifTags, error) {
	return ExifForFile(path)
}

func (ExifTool) SetExifSubjectLocation(p models.Point, src io.Reader, destPath string) error {
	return SetExifSubjectLocation(p, src, destPath)
}

type tagCollector models.ExifTags

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	c[string(name)] = tagString(tag)
	return nil
}

// Renders a tag the same way regardless of its storage format so callers
// can compare values as strings.
func tagString(tag *tiff.Tag) string {
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return ""
		}
		return strings.TrimRight(strings.TrimSpace(s), "\x00")
	case tiff.IntVal:
		vals := make([]string, 0, tag.Count)
		for i := 0; i < int(tag.Count); i++ {
			v, err := tag.Int(i)
			if err != nil {
				break
			}
			vals = append(vals, strconv.Itoa(v))
		}
		return strings.Join(vals, ",")
	default:
		return tag.String()
	}
}

// Extracts every EXIF tag from the file at path.
func ExifForFile(path string) (models.ExifTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF: %w", err)
	}

	tags := tagCollector{}
	if err := x.Walk(tags); err != nil {
		return nil, fmt.Errorf("failed to walk EXIF: %w", err)
	}
	return models.ExifTags(tags), nil
}

// ParseExifDateTime parses an EXIF timestamp as local wall-clock time.
func ParseExifDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty EXIF timestamp")
	}
	t, err := time.ParseInLocation(exifDateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse EXIF timestamp %q: %w", value, err)
	}
	return t, nil
}

// ParseSubjectLocation reads the SubjectLocation tag from tags.
func ParseSubjectLocation(tags models.ExifTags) (models.Point, bool) {
	raw, ok := tags[TagSubjectLocation]
	if !ok {
		return models.Point{}, false
	}
	p, err := models.ParsePoint(raw)
	if err != nil {
		return models.Point{}, false
	}
	return p, true
}

// SetExifSubjectLocation reads a JPEG from src, sets its SubjectLocation
// tag to p and writes the result to destPath. The file is replaced
// atomically.
func SetExifSubjectLocation(p models.Point, src io.Reader, destPath string) error {
	if p.X < 0 || p.Y < 0 || p.X > 0xFFFF || p.Y > 0xFFFF {
		return fmt.Errorf("subject location %s out of range", p)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return fmt.Errorf("source is not a JPEG")
	}

	intfc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return fmt.Errorf("failed to parse JPEG: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		return fmt.Errorf("failed to read EXIF block: %w", err)
	}

	exifIb, err := dexif.GetOrCreateIbFromRootIb(rootIb, exifIfdPath)
	if err != nil {
		return fmt.Errorf("failed to open EXIF IFD: %w", err)
	}

	if err := exifIb.SetStandardWithName(TagSubjectLocation, []uint16{uint16(p.X), uint16(p.Y)}); err != nil {
		return fmt.Errorf("failed to set subject location: %w", err)
	}

	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("failed to update EXIF block: %w", err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}

	return writeFileAtomic(destPath, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".exif-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if info, err := os.Stat(path); err == nil {
		if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
			return fmt.Errorf("failed to copy file mode: %w", err)
		}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
