package ports

import (
	"context"

	"github.com/google/uuid"
)

// ImageStorage визначає інтерфейс для зберігання бінарних зображень тривог
type ImageStorage interface {
	// SaveImageBlob зберігає зображення (base64-текст) та повертає об'єктний ключ
	SaveImageBlob(ctx context.Context, imageID uuid.UUID, kind string, blob string) (string, error)

	// GetImageBlob повертає зображення за об'єктним ключем як base64-текст
	GetImageBlob(ctx context.Context, objectKey string) (string, error)

	// DeleteImageBlobs видаляє всі об'єкти, що належать зображенню тривоги
	DeleteImageBlobs(ctx context.Context, imageID uuid.UUID) error
}
