package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// sniffLen is the number of leading bytes used to detect an upload's content type.
const sniffLen = 3072

// MinioStore keeps assets as objects in a MinIO/S3 compatible bucket. Object
// keys are the generated filenames; references carry the public prefix.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket, prefix string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return newMinioStore(ctx, client, bucket, prefix)
}

func newMinioStore(ctx context.Context, client *minio.Client, bucket, prefix string) (*MinioStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinioStore{client: client, bucket: bucket, prefix: prefix, now: time.Now}, nil
}

// Store uploads content in a single PUT. Content of unknown size is
// buffered first; callers bound it before it gets here.
func (m *MinioStore) Store(ctx context.Context, content io.Reader, size int64, originalName string) (string, error) {
	if size < 0 {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, content); err != nil {
			return "", fmt.Errorf("read asset: %w", err)
		}
		content = &buf
		size = int64(buf.Len())
	}

	head := make([]byte, min(size, sniffLen))
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read asset: %w", err)
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	key, err := m.freeKey(ctx, SanitizeName(originalName))
	if err != nil {
		return "", err
	}

	body := io.MultiReader(bytes.NewReader(head), content)
	if _, err := m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return joinRef(m.prefix, key), nil
}

// freeKey picks the first candidate key that is not already taken in the bucket.
func (m *MinioStore) freeKey(ctx context.Context, safeName string) (string, error) {
	now := m.now()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		key := candidateName(now, safeName, attempt)
		_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			continue
		}
		if isNoSuchKey(err) {
			return key, nil
		}
		return "", fmt.Errorf("stat object: %w", err)
	}
	return "", ErrNameExhausted
}

func (m *MinioStore) Remove(ctx context.Context, ref string) error {
	key, ok := filenameFromRef(ref)
	if !ok {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (m *MinioStore) Open(ctx context.Context, ref string) (*Object, error) {
	key, ok := filenameFromRef(ref)
	if !ok {
		return nil, ErrNotExist
	}

	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}

	return &Object{
		Name:        key,
		Size:        info.Size,
		ModTime:     info.LastModified,
		ContentType: info.ContentType,
		Content:     obj,
	}, nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
