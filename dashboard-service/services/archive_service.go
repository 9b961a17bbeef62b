package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gorm.io/gorm"

	"expoboard-backend/shared/config"
	seclog "expoboard-backend/shared/database/models/security"
)

// ArchiveService exports security ledger snapshots to object storage.
// The ledger itself is never deleted; snapshots give admins an offline
// copy before destructive operations like a system reset.
type ArchiveService struct {
	client     *minio.Client
	bucketName string
}

// NewArchiveService creates an archive service against the configured MinIO
func NewArchiveService() (*ArchiveService, error) {
	cfg := config.GetConfig()

	parsedURL, err := url.Parse(cfg.MinIOServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MinIO endpoint: %v", err)
	}

	log.Printf("🔗 Connecting to MinIO: %s (SSL: %v)", parsedURL.Host, cfg.MinIOUseSSL)

	minioClient, err := minio.New(parsedURL.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIORootUser, cfg.MinIORootPassword, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	service := &ArchiveService{
		client:     minioClient,
		bucketName: cfg.MinIOBucketName,
	}

	if err := service.initializeBucket(); err != nil {
		return nil, err
	}

	return service, nil
}

func (s *ArchiveService) initializeBucket() error {
	ctx := context.Background()

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
		log.Printf("✅ MinIO bucket '%s' created successfully", s.bucketName)
	}

	return nil
}

// ExportSecurityLogs writes a JSON snapshot of the full security ledger to
// the archive bucket and returns the object name.
func (s *ArchiveService) ExportSecurityLogs(ctx context.Context, db *gorm.DB) (string, error) {
	var entries []seclog.SecurityLog
	if err := db.Order("created_at ASC").Find(&entries).Error; err != nil {
		return "", fmt.Errorf("failed to load security logs: %w", err)
	}

	snapshot := struct {
		ExportedAt time.Time            `json:"exported_at"`
		Count      int                  `json:"count"`
		Entries    []seclog.SecurityLog `json:"entries"`
	}{
		ExportedAt: time.Now().UTC(),
		Count:      len(entries),
		Entries:    entries,
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	objectName := fmt.Sprintf("security-logs/%s.json", snapshot.ExportedAt.Format("20060102-150405"))

	_, err = s.client.PutObject(ctx, s.bucketName, objectName,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	log.Printf("✅ Security log snapshot archived: %s (%d entries)", objectName, len(entries))
	return objectName, nil
}
