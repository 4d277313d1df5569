// Package storage uploads listing photos to the Firebase Storage bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

var ErrUnsupportedType = errors.New("unsupported image type")

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

type Uploader struct {
	client *storage.Client
	bucket string
}

func NewUploader(ctx context.Context, bucket string, opts ...option.ClientOption) (*Uploader, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage bucket is empty")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &Uploader{client: client, bucket: bucket}, nil
}

// Put writes data under objectPath with a Firebase download token and returns
// the tokenized download URL.
func (u *Uploader) Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	token := uuid.NewString()
	obj := u.client.Bucket(u.bucket).Object(objectPath)
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return PublicURL(u.bucket, objectPath, token), nil
}

func (u *Uploader) Close() error {
	return u.client.Close()
}

// ListingImagePath names a new object for a listing photo uploaded by uid.
func ListingImagePath(uid, contentType string) (string, error) {
	ext, ok := imageExtensions[strings.ToLower(contentType)]
	if !ok {
		return "", ErrUnsupportedType
	}
	if uid == "" || strings.ContainsAny(uid, "/\\") {
		return "", fmt.Errorf("invalid owner id %q", uid)
	}
	return fmt.Sprintf("listings/%s/%s.%s", uid, uuid.NewString(), ext), nil
}

func PublicURL(bucket, objectPath, token string) string {
	escaped := strings.ReplaceAll(url.PathEscape(objectPath), "/", "%2F")
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, escaped, url.QueryEscape(token))
}
