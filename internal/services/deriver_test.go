package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	apperrors "filer-api/internal/errors"
	"filer-api/internal/models"
)

type fakeExif struct {
	tags    models.ExifTags
	readErr error
	reads   int

	writeErr error
	writes   []models.Point
	written  []string
}

func (f *fakeExif) ExifForFile(string) (models.ExifTags, error) {
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.tags, nil
}

func (f *fakeExif) SetExifSubjectLocation(p models.Point, src io.Reader, _ string) error {
	data, _ := io.ReadAll(src)
	f.writes = append(f.writes, p)
	f.written = append(f.written, string(data))
	return f.writeErr
}

type fakeAsset struct {
	width, height int
	dimErr        error
	openErr       error
	content       string
}

func (a *fakeAsset) Open() (io.ReadCloser, error) {
	if a.openErr != nil {
		return nil, a.openErr
	}
	return io.NopCloser(strings.NewReader(a.content)), nil
}
func (a *fakeAsset) Path() string                                { return "/media/photos/a.jpg" }
func (a *fakeAsset) Size() (int64, error)                        { return int64(len(a.content)), nil }
func (a *fakeAsset) URL() (string, error)                        { return "/media/photos/a.jpg", nil }
func (a *fakeAsset) ExtraThumbnails() (map[string]string, error) { return nil, nil }

func (a *fakeAsset) Width() (int, error) {
	if a.dimErr != nil {
		return 0, a.dimErr
	}
	return a.width, nil
}

func (a *fakeAsset) Height() (int, error) {
	if a.dimErr != nil {
		return 0, a.dimErr
	}
	return a.height, nil
}

type recordingSaver struct {
	saved []*models.ImageRecord
	err   error
}

func (s *recordingSaver) SaveImageRecord(_ context.Context, rec *models.ImageRecord) error {
	s.saved = append(s.saved, rec)
	return s.err
}

func newTestDeriver(exif ExifTool, now time.Time) *MetadataDeriver {
	d := NewMetadataDeriver(exif)
	d.now = func() time.Time { return now }
	return d
}

func TestOnSaveDateTakenFromExif(t *testing.T) {
	exif := &fakeExif{tags: models.ExifTags{"DateTimeOriginal": "2020:01:02 03:04:05"}}
	d := newTestDeriver(exif, time.Now())
	rec := &models.ImageRecord{}

	d.OnSave(rec, &fakeAsset{})

	want := time.Date(2020, 1, 2, 3, 4, 5, 0, time.Local)
	if rec.DateTaken == nil || !rec.DateTaken.Equal(want) {
		t.Errorf("DateTaken = %v, want %v", rec.DateTaken, want)
	}
}

func TestOnSaveDateTakenFallsBackToNow(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	tests := []struct {
		name  string
		exif  *fakeExif
		asset models.Asset
	}{
		{name: "no tag", exif: &fakeExif{tags: models.ExifTags{}}, asset: &fakeAsset{}},
		{name: "malformed tag", exif: &fakeExif{tags: models.ExifTags{"DateTimeOriginal": "yesterday"}}, asset: &fakeAsset{}},
		{name: "unreadable asset", exif: &fakeExif{readErr: errors.New("boom")}, asset: &fakeAsset{}},
		{name: "no asset", exif: &fakeExif{}, asset: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeriver(tt.exif, now)
			rec := &models.ImageRecord{}
			d.OnSave(rec, tt.asset)
			if rec.DateTaken == nil || !rec.DateTaken.Equal(now) {
				t.Errorf("DateTaken = %v, want %v", rec.DateTaken, now)
			}
		})
	}
}

func TestOnSaveDateTakenWithRealClock(t *testing.T) {
	d := NewMetadataDeriver(&fakeExif{})
	rec := &models.ImageRecord{}

	before := time.Now()
	d.OnSave(rec, nil)

	if rec.DateTaken == nil {
		t.Fatal("DateTaken not set")
	}
	if diff := rec.DateTaken.Sub(before); diff < 0 || diff > 5*time.Second {
		t.Errorf("DateTaken %v too far from %v", rec.DateTaken, before)
	}
}

func TestOnSaveKeepsExistingDateTaken(t *testing.T) {
	exif := &fakeExif{tags: models.ExifTags{"DateTimeOriginal": "2020:01:02 03:04:05"}}
	d := newTestDeriver(exif, time.Now())
	taken := time.Date(1999, 12, 31, 23, 59, 0, 0, time.UTC)
	rec := &models.ImageRecord{DateTaken: &taken}

	d.OnSave(rec, &fakeAsset{})
	d.OnSave(rec, &fakeAsset{})

	if !rec.DateTaken.Equal(taken) {
		t.Errorf("DateTaken changed to %v", rec.DateTaken)
	}
}

func TestOnSaveValidity(t *testing.T) {
	d := newTestDeriver(&fakeExif{}, time.Now())

	rec := &models.ImageRecord{HasAllMandatoryData: true}
	d.OnSave(rec, nil)
	if rec.HasAllMandatoryData {
		t.Error("HasAllMandatoryData = true for empty name")
	}

	rec.Name = "Harbour"
	d.OnSave(rec, nil)
	if !rec.HasAllMandatoryData {
		t.Error("HasAllMandatoryData = false for named image")
	}
}

func TestOnSaveSubjectLocation(t *testing.T) {
	tests := []struct {
		name       string
		location   string
		tags       models.ExifTags
		asset      *fakeAsset
		wantWrites []models.Point
	}{
		{
			name:       "differs",
			location:   "100,200",
			tags:       models.ExifTags{"SubjectLocation": "1,2"},
			asset:      &fakeAsset{content: "jpeg bytes"},
			wantWrites: []models.Point{{X: 100, Y: 200}},
		},
		{
			name:       "missing in exif",
			location:   "100,200",
			tags:       models.ExifTags{},
			asset:      &fakeAsset{content: "jpeg bytes"},
			wantWrites: []models.Point{{X: 100, Y: 200}},
		},
		{
			name:     "already matches",
			location: "100,200",
			tags:     models.ExifTags{"SubjectLocation": "100,200"},
			asset:    &fakeAsset{content: "jpeg bytes"},
		},
		{
			name:     "unset",
			location: "",
			tags:     models.ExifTags{"SubjectLocation": "1,2"},
			asset:    &fakeAsset{content: "jpeg bytes"},
		},
		{
			name:     "malformed",
			location: "100;200",
			tags:     models.ExifTags{},
			asset:    &fakeAsset{content: "jpeg bytes"},
		},
		{
			name:     "unreadable asset",
			location: "100,200",
			tags:     models.ExifTags{},
			asset:    &fakeAsset{openErr: errors.New("gone")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exif := &fakeExif{tags: tt.tags}
			d := newTestDeriver(exif, time.Now())
			rec := &models.ImageRecord{SubjectLocation: tt.location}

			d.OnSave(rec, tt.asset)

			if len(exif.writes) != len(tt.wantWrites) {
				t.Fatalf("writes = %v, want %v", exif.writes, tt.wantWrites)
			}
			for i := range tt.wantWrites {
				if exif.writes[i] != tt.wantWrites[i] {
					t.Errorf("write %d = %v, want %v", i, exif.writes[i], tt.wantWrites[i])
				}
				if exif.written[i] != tt.asset.content {
					t.Errorf("write %d source = %q, want %q", i, exif.written[i], tt.asset.content)
				}
			}
			if rec.SubjectLocation != tt.location {
				t.Errorf("SubjectLocation changed to %q", rec.SubjectLocation)
			}
		})
	}
}

func TestOnSaveSubjectLocationWriteFailureIsIgnored(t *testing.T) {
	exif := &fakeExif{tags: models.ExifTags{}, writeErr: errors.New("read-only")}
	d := newTestDeriver(exif, time.Now())
	rec := &models.ImageRecord{SubjectLocation: "3,4"}

	d.OnSave(rec, &fakeAsset{width: 10, height: 20})

	if rec.SubjectLocation != "3,4" {
		t.Errorf("SubjectLocation = %q", rec.SubjectLocation)
	}
	if rec.Width() != 10 || rec.Height() != 20 {
		t.Errorf("later steps skipped: %dx%d", rec.Width(), rec.Height())
	}
}

func TestOnSaveRereadsExifAfterWrite(t *testing.T) {
	exif := &fakeExif{tags: models.ExifTags{}}
	d := newTestDeriver(exif, time.Now())
	rec := &models.ImageRecord{SubjectLocation: "3,4"}

	d.OnSave(rec, &fakeAsset{})
	reads := exif.reads
	rec.Exif(func() models.ExifTags {
		exif.reads++
		return nil
	})

	if exif.reads != reads+1 {
		t.Error("EXIF cache not invalidated after write")
	}
}

func TestOnSaveDimensions(t *testing.T) {
	d := newTestDeriver(&fakeExif{}, time.Now())

	rec := &models.ImageRecord{}
	d.OnSave(rec, &fakeAsset{width: 640, height: 480})
	if rec.Width() != 640 || rec.Height() != 480 {
		t.Fatalf("dimensions = %dx%d, want 640x480", rec.Width(), rec.Height())
	}

	d.OnSave(rec, &fakeAsset{dimErr: errors.New("missing")})
	if rec.Width() != 640 || rec.Height() != 480 {
		t.Errorf("dimensions overwritten on failure: %dx%d", rec.Width(), rec.Height())
	}
}

func TestSaveDelegatesToBase(t *testing.T) {
	d := newTestDeriver(&fakeExif{}, time.Now())
	saver := &recordingSaver{}
	rec := &models.ImageRecord{FileRecord: models.FileRecord{Name: "a"}}

	if err := d.Save(context.Background(), saver, rec, &fakeAsset{width: 1, height: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(saver.saved) != 1 || saver.saved[0] != rec {
		t.Fatalf("record not passed to base save")
	}
	if rec.DateTaken == nil || !rec.HasAllMandatoryData || rec.Width() != 1 {
		t.Errorf("derivation did not run before save: %+v", rec)
	}

	saver.err = errors.New("firestore down")
	if err := d.Save(context.Background(), saver, rec, nil); err == nil {
		t.Error("expected persistence error")
	}
}

func TestMissingAssetReportsErrNoAsset(t *testing.T) {
	d := NewMetadataDeriver(&fakeExif{})
	rec := &models.ImageRecord{SubjectLocation: "1,2"}

	if err := d.reconcileSubjectLocation(rec); !errors.Is(err, apperrors.ErrNoAsset) {
		t.Errorf("reconcileSubjectLocation error = %v, want ErrNoAsset", err)
	}
	if err := d.deriveDimensions(rec); !errors.Is(err, apperrors.ErrNoAsset) {
		t.Errorf("deriveDimensions error = %v, want ErrNoAsset", err)
	}
}
