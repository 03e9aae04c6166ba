package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"user-registry/config"
	"user-registry/metrics"
	"user-registry/models"
)

// backupPrefix is the object key prefix for user backups
const backupPrefix = "users/"

// ErrNotConnected is returned when no MinIO client has been configured
var ErrNotConnected = errors.New("MinIO client not connected")

// IntegrationService handles S3-compatible backup storage via MinIO
type IntegrationService struct {
	client     *minio.Client
	bucketName string
	mu         sync.RWMutex
	connected  bool
	logger     *zap.Logger
}

// NewIntegrationService creates a disconnected service; call Connect before use
func NewIntegrationService(logger *zap.Logger) *IntegrationService {
	return &IntegrationService{logger: logger.Named("minio")}
}

// BackupObjectName returns the object key holding the backup for id
func BackupObjectName(id string) string {
	return backupPrefix + models.NormalizeNationalID(id) + ".json"
}

// Connect initializes the MinIO client and ensures the bucket exists
func (s *IntegrationService) Connect(cfg config.MinIOConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s.client = client
	s.bucketName = cfg.BucketName
	s.connected = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		// Bucket may not be reachable yet; operations will surface the error later
		s.logger.Warn("failed to check bucket existence", zap.String("bucket", cfg.BucketName), zap.Error(err))
		return nil
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			s.logger.Warn("failed to create bucket", zap.String("bucket", cfg.BucketName), zap.Error(err))
		} else {
			s.logger.Info("created bucket", zap.String("bucket", cfg.BucketName))
		}
	}

	s.logger.Info("connected to MinIO", zap.String("endpoint", cfg.Endpoint))
	return nil
}

// IsConnected returns whether the service is connected to MinIO
func (s *IntegrationService) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *IntegrationService) snapshot() (*minio.Client, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected || s.client == nil {
		return nil, "", ErrNotConnected
	}
	return s.client, s.bucketName, nil
}

// BackupUser stores user as JSON under its national id
func (s *IntegrationService) BackupUser(ctx context.Context, user *models.User) (err error) {
	defer func() { metrics.RecordBackup("backup", err) }()

	client, bucket, err := s.snapshot()
	if err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = client.PutObject(ctx, bucket, BackupObjectName(user.NationalID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload user backup: %w", err)
	}

	s.logger.Debug("user backed up", zap.String("user_id", user.NationalID))
	return nil
}

// RestoreUser reads the backup for id. The returned record has not been
// re-validated; insert it through UserService.Restore.
func (s *IntegrationService) RestoreUser(ctx context.Context, id string) (user *models.User, err error) {
	defer func() { metrics.RecordBackup("restore", err) }()

	client, bucket, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	obj, err := client.GetObject(ctx, bucket, BackupObjectName(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get user backup: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read user backup: %w", err)
	}

	return DecodeBackup(data)
}

// DecodeBackup parses a stored backup object
func DecodeBackup(data []byte) (*models.User, error) {
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	user.Sanitize()
	return &user, nil
}

// DeleteUserBackup removes the backup for id
func (s *IntegrationService) DeleteUserBackup(ctx context.Context, id string) (err error) {
	defer func() { metrics.RecordBackup("delete", err) }()

	client, bucket, err := s.snapshot()
	if err != nil {
		return err
	}

	if err := client.RemoveObject(ctx, bucket, BackupObjectName(id), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete user backup: %w", err)
	}

	s.logger.Debug("user backup deleted", zap.String("user_id", id))
	return nil
}

// BackupAllUsers backs up every user, stopping at the first failure
func (s *IntegrationService) BackupAllUsers(ctx context.Context, users []*models.User) error {
	for _, user := range users {
		if err := s.BackupUser(ctx, user); err != nil {
			return fmt.Errorf("failed to backup user %s: %w", user.NationalID, err)
		}
	}
	return nil
}

// ListBackups returns the national ids that have a backup
func (s *IntegrationService) ListBackups(ctx context.Context) ([]string, error) {
	client, bucket, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	backups := make([]string, 0)
	objectCh := client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    backupPrefix,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		backups = append(backups, strings.TrimSuffix(strings.TrimPrefix(object.Key, backupPrefix), ".json"))
	}

	return backups, nil
}

// HealthCheck checks MinIO connectivity
func (s *IntegrationService) HealthCheck(ctx context.Context) error {
	client, bucket, err := s.snapshot()
	if err != nil {
		return err
	}
	_, err = client.BucketExists(ctx, bucket)
	return err
}
