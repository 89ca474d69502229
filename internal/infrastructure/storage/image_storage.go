package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioImageStorage зберігає бінарні дані зображень тривог в об'єктному
// сховищі. Документи у базі несуть лише ключі об'єктів: навантаження
// pg_notify обмежене, тому великі дані не потрапляють у потік змін.
type MinioImageStorage struct {
	client     *minio.Client
	bucketName string
}

// NewMinioImageStorage створює новий екземпляр MinioImageStorage
func NewMinioImageStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioImageStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioImageStorage{
		client:     client,
		bucketName: bucket,
	}, nil
}

// SaveImageBlob зберігає base64-дані зображення та повертає ключ об'єкта
func (s *MinioImageStorage) SaveImageBlob(ctx context.Context, imageID uuid.UUID, kind, blob string) (string, error) {
	key := fmt.Sprintf("alert-images/%s/%s", imageID.String(), kind)

	reader := strings.NewReader(blob)
	_, err := s.client.PutObject(ctx, s.bucketName, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return "", fmt.Errorf("failed to store image blob: %w", err)
	}

	return key, nil
}

// GetImageBlob читає base64-дані зображення за ключем об'єкта
func (s *MinioImageStorage) GetImageBlob(ctx context.Context, key string) (string, error) {
	object, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get image blob: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return "", fmt.Errorf("failed to read image blob: %w", err)
	}

	return string(data), nil
}

// DeleteImageBlobs видаляє всі об'єкти зображення
func (s *MinioImageStorage) DeleteImageBlobs(ctx context.Context, imageID uuid.UUID) error {
	prefix := fmt.Sprintf("alert-images/%s/", imageID.String())

	objects := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: prefix})
	for object := range objects {
		if object.Err != nil {
			return fmt.Errorf("failed to list image blobs: %w", object.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucketName, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove image blob: %w", err)
		}
	}

	return nil
}
