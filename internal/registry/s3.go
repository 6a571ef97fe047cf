// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/slnpack/slnpack/internal/config"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const archiveContentType = "application/zip"

// ObjectStoreRegistry uploads archives to an S3 compatible bucket under
// <prefix>/<artifactId>/<version>/<file>.
type ObjectStoreRegistry struct {
	client *minio.Client
	bucket string
	region string
	prefix string
	logger *log.Logger
}

// ValidateS3Config checks the settings needed to reach the object store.
func ValidateS3Config(cfg config.S3Config) error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(cfg.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", cfg.Endpoint)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// NewObjectStoreRegistry connects a registry to the configured object store.
// No request is made until Register.
func NewObjectStoreRegistry(cfg config.S3Config, logger *log.Logger) (*ObjectStoreRegistry, error) {
	if err := ValidateS3Config(cfg); err != nil {
		return nil, &RegistrationError{Kind: config.RegistryS3, Path: cfg.Endpoint, Err: err}
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, &RegistrationError{Kind: config.RegistryS3, Path: cfg.Endpoint, Err: err}
	}

	return &ObjectStoreRegistry{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: orDiscard(logger),
	}, nil
}

// ObjectKey returns the key an artifact is uploaded under.
func (r *ObjectStoreRegistry) ObjectKey(a Artifact) string {
	return objectKey(r.prefix, a)
}

func objectKey(prefix string, a Artifact) string {
	return path.Join(prefix, a.ArtifactID, a.Version, filepath.Base(a.Path))
}

// Register ensures the bucket exists and uploads the archive.
func (r *ObjectStoreRegistry) Register(ctx context.Context, a Artifact) (*Registration, error) {
	digest, _, err := digestFile(a.Path)
	if err != nil {
		return nil, r.fail(a, err)
	}

	if err := r.ensureBucket(ctx); err != nil {
		return nil, r.fail(a, fmt.Errorf("ensure bucket %s: %w", r.bucket, err))
	}

	key := r.ObjectKey(a)
	id := uuid.NewString()
	info, err := r.client.FPutObject(ctx, r.bucket, key, a.Path, minio.PutObjectOptions{
		ContentType: archiveContentType,
		UserMetadata: map[string]string{
			"sha256":          digest,
			"registration-id": id,
		},
	})
	if err != nil {
		return nil, r.fail(a, fmt.Errorf("upload %s: %w", key, err))
	}

	location := fmt.Sprintf("s3://%s/%s", r.bucket, key)
	r.logger.Info("uploaded artifact", "location", location, "etag", info.ETag)
	return &Registration{ID: id, Location: location, SHA256: digest}, nil
}

func (r *ObjectStoreRegistry) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{Region: r.region})
}

func (r *ObjectStoreRegistry) fail(a Artifact, err error) error {
	return &RegistrationError{Kind: config.RegistryS3, Path: a.Path, Err: err}
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
