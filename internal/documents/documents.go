// Package documents fetches stored contract PDFs for integrity verification.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"notary/internal/platform/config"
	tenantModels "notary/internal/tenant/models"
	"notary/pkg/platform/sentinel"
)

// ErrEmptyDocument is returned when the stored object has no content.
var ErrEmptyDocument = errors.New("empty response body")

// maxDocumentSize bounds how much of an object is read into memory.
const maxDocumentSize = 64 << 20

// TenantResolver yields per-tenant storage settings.
type TenantResolver interface {
	Resolve(ctx context.Context, id string) (tenantModels.Resolved, error)
}

// ObjectGetter is the subset of *minio.Client used for reads.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// S3Fetcher reads documents from an S3-compatible store. The bucket comes
// from the tenant's resolved configuration; the pointer is the object key.
type S3Fetcher struct {
	client  ObjectGetter
	tenants TenantResolver
	logger  *slog.Logger
}

// NewMinioClient builds a minio client from cfg.
func NewMinioClient(cfg config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

func NewS3Fetcher(client ObjectGetter, tenants TenantResolver, logger *slog.Logger) *S3Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &S3Fetcher{client: client, tenants: tenants, logger: logger}
}

// GetDocumentBytes downloads the object named by pointer from the tenant's bucket.
func (f *S3Fetcher) GetDocumentBytes(ctx context.Context, pointer, tenantID string) ([]byte, error) {
	resolved, err := f.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant storage: %w", err)
	}
	bucket, key := ObjectLocation(resolved.S3Bucket, pointer)
	if key == "" {
		return nil, fmt.Errorf("document pointer %q names no object", pointer)
	}

	start := time.Now()
	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxDocumentSize+1))
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("object %s/%s exceeds %d bytes", bucket, key, maxDocumentSize)
	}

	f.logger.DebugContext(ctx, "fetched document",
		"tenant_id", tenantID,
		"bucket", bucket,
		"key", key,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

// ObjectLocation splits a pointer into bucket and key. Pointers are usually
// bare keys; "s3://bucket/key" names the bucket explicitly.
func ObjectLocation(defaultBucket, pointer string) (bucket, key string) {
	if rest, ok := strings.CutPrefix(pointer, "s3://"); ok {
		b, k, _ := strings.Cut(rest, "/")
		return b, k
	}
	return defaultBucket, strings.TrimPrefix(pointer, "/")
}

// InMemory serves documents from a map keyed by tenant and pointer.
type InMemory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewInMemory() *InMemory {
	return &InMemory{docs: make(map[string][]byte)}
}

func memoryKey(tenantID, pointer string) string {
	return tenantID + "\x00" + pointer
}

// Put stores a document for a tenant.
func (m *InMemory) Put(tenantID, pointer string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[memoryKey(tenantID, pointer)] = append([]byte(nil), data...)
}

func (m *InMemory) GetDocumentBytes(_ context.Context, pointer, tenantID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[memoryKey(tenantID, pointer)]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", pointer, sentinel.ErrNotFound)
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	return append([]byte(nil), data...), nil
}
