// internal/adapters/out/gcs/productImage_repository_gcs.go
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ProductImageRepositoryGCS stores product photos.
//
// Layout: products/{productId}/{objectId}-{fileName}
//
// The bucket is expected to grant allUsers Storage Object Viewer, so the
// returned URL is directly readable.
type ProductImageRepositoryGCS struct {
	Client *storage.Client
	Bucket string
	// Optional: if empty, uses https://storage.googleapis.com
	PublicBaseURL string
}

func NewProductImageRepositoryGCS(client *storage.Client, bucket string) *ProductImageRepositoryGCS {
	return &ProductImageRepositoryGCS{
		Client:        client,
		Bucket:        strings.TrimSpace(bucket),
		PublicBaseURL: "https://storage.googleapis.com",
	}
}

func productImageObjectPath(productID, fileName, contentType, objectID string) (string, error) {
	pid := sanitizePathSegment(productID)
	if pid == "" {
		return "", errors.New("productImage_repository_gcs: productID is empty")
	}
	name := sanitizePathSegment(fileName)
	if name == "" {
		name = "image"
	}
	name = ensureExtensionByMIME(name, contentType)
	return fmt.Sprintf("products/%s/%s-%s", pid, objectID, name), nil
}

// Upload streams body into the bucket and returns the public URL.
func (r *ProductImageRepositoryGCS) Upload(
	ctx context.Context,
	productID, fileName, contentType string,
	body io.Reader,
) (string, error) {
	if r == nil || r.Client == nil {
		return "", errors.New("productImage_repository_gcs: storage client is nil")
	}
	if r.Bucket == "" {
		return "", errors.New("productImage_repository_gcs: bucket is empty")
	}

	obj, err := productImageObjectPath(productID, fileName, contentType, newObjectID())
	if err != nil {
		return "", err
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := r.Client.Bucket(r.Bucket).Object(obj).NewWriter(wctx)
	if ct := strings.TrimSpace(contentType); ct != "" {
		w.ContentType = ct
	}
	w.CacheControl = "public, max-age=86400"
	w.Metadata = map[string]string{
		"productId":  productID,
		"uploadedAt": time.Now().UTC().Format(time.RFC3339),
	}

	if err := writeObject(w, cancel, body); err != nil {
		return "", fmt.Errorf("productImage_repository_gcs: upload %s: %w", obj, err)
	}
	return publicURL(r.PublicBaseURL, r.Bucket, obj), nil
}

// writeObject streams body into w and finalizes it with Close. When the copy
// fails, cancel runs before Close so the partial object is discarded.
func writeObject(w io.WriteCloser, cancel context.CancelFunc, body io.Reader) error {
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}
