package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"filer-api/internal/errors"
	"filer-api/internal/models"
)

const maxListLimit = 1000

type Collections struct {
	Images  string
	Folders string
	Users   string
}

type FirestoreService struct {
	client      *firestore.Client
	collections Collections
	now         func() time.Time
}

func NewFirestoreService(client *firestore.Client, collections Collections) *FirestoreService {
	return &FirestoreService{
		client:      client,
		collections: collections,
		now:         time.Now,
	}
}

// Retrieves an image record by document ID.
func (fs *FirestoreService) GetImageRecord(ctx context.Context, id string) (*models.ImageRecord, error) {
	doc, err := fs.client.Collection(fs.collections.Images).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var rec models.ImageRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to parse image record: %w", err)
	}
	rec.ID = doc.Ref.ID

	return &rec, nil
}

// Retrieves image records ordered by dateTaken with pagination.
// A limit of 0 returns every record.
func (fs *FirestoreService) ListImageRecords(ctx context.Context, limit int, page int) ([]*models.ImageRecord, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative: %w", errors.ErrInvalidInput)
	}
	if page < 0 {
		return nil, fmt.Errorf("page cannot be negative: %w", errors.ErrInvalidInput)
	}

	query := fs.client.Collection(fs.collections.Images).OrderBy("dateTaken", firestore.Desc)

	if limit > 0 {
		if limit > maxListLimit {
			limit = maxListLimit
		}
		query = query.Limit(limit)
		if page > 0 {
			query = query.Offset(page * limit)
		}
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var results []*models.ImageRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}

		var rec models.ImageRecord
		if err := doc.DataTo(&rec); err != nil {
			// Skip documents that don't decode
			continue
		}
		rec.ID = doc.Ref.ID

		results = append(results, &rec)
	}

	return results, nil
}

// SaveImageRecord is the generic file save: it stamps the bookkeeping
// fields and writes every declared field. New records get a generated ID.
func (fs *FirestoreService) SaveImageRecord(ctx context.Context, rec *models.ImageRecord) error {
	now := fs.now()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.FileType = models.FileTypeImage

	if _, err := fs.client.Collection(fs.collections.Images).Doc(rec.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to save image record: %w", err)
	}

	return nil
}

// Retrieves a folder by ID.
func (fs *FirestoreService) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	doc, err := fs.client.Collection(fs.collections.Folders).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	var folder models.Folder
	if err := doc.DataTo(&folder); err != nil {
		return nil, fmt.Errorf("failed to parse folder: %w", err)
	}
	folder.ID = doc.Ref.ID

	return &folder, nil
}

// Finds the user holding the given API key.
func (fs *FirestoreService) GetUserByAPIKey(ctx context.Context, key string) (*models.User, error) {
	iter := fs.client.Collection(fs.collections.Users).Where("apiKey", "==", key).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}
	user.ID = doc.Ref.ID

	return &user, nil
}
