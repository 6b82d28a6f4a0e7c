package server

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"filer-api/internal/config"
	"filer-api/internal/handlers"
	"filer-api/internal/middleware"
	"filer-api/internal/router"
	"filer-api/internal/services"
	"filer-api/internal/utils"
)

// Services holds all initialized services for the application
type Services struct {
	Cache     *services.CacheService
	Storage   *services.StorageService
	Firestore *services.FirestoreService
	Assets    *services.AssetStore
	Deriver   *services.MetadataDeriver
	Image     *services.ImageService

	closers []func() error
}

// Close releases the cloud clients and stops background work.
func (s *Services) Close() error {
	s.Cache.Close()
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ClientOptions builds the Google client credentials from configuration.
func ClientOptions(cfg *config.Config) []option.ClientOption {
	if cfg.FirebaseCredentialsJSON != "" {
		// Preferred for Vercel
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON))}
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.FirebaseCredentialsPath)}
}

// InitServices initializes all application services based on configuration.
// Returns the initialized services or an error if initialization fails.
func InitServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	opts := ClientOptions(cfg)

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, opts...)
	if err != nil {
		storageClient.Close()
		return nil, fmt.Errorf("firestore client: %w", err)
	}

	cacheService := services.NewCacheService(cfg.CacheTTL, cfg.CacheCleanupInterval)
	storageService := services.NewStorageService(storageClient, cfg.FirebaseBucketName)
	firestoreService := services.NewFirestoreService(firestoreClient, services.Collections{
		Images:  cfg.ImagesCollection,
		Folders: cfg.FoldersCollection,
		Users:   cfg.UsersCollection,
	})
	assetStore := services.NewAssetStore(cfg.MediaRoot, cfg.MediaURL)
	deriver := services.NewMetadataDeriver(utils.ExifTool{})
	imageService := services.NewImageService(firestoreService, cacheService, assetStore, deriver)

	return &Services{
		Cache:     cacheService,
		Storage:   storageService,
		Firestore: firestoreService,
		Assets:    assetStore,
		Deriver:   deriver,
		Image:     imageService,
		closers:   []func() error{firestoreClient.Close, storageClient.Close},
	}, nil
}

// CreateHandler creates an HTTP handler with all middleware applied
func CreateHandler(svcs *Services, cfg *config.Config) http.Handler {
	h := handlers.New(svcs.Image)
	mux := router.Setup(h)

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	// Outermost first: request ID, logging, CORS, rate limit, auth.
	wrapped := middleware.Authenticate(svcs.Firestore)(mux)
	wrapped = limiter.Limit(wrapped)
	wrapped = middleware.CORS(wrapped, cfg.AllowedOrigins)
	wrapped = middleware.Logger(wrapped)
	wrapped = middleware.RequestID(wrapped)

	return wrapped
}
