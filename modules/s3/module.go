// Package s3 publishes the sandbox as a gzipped tarball to an S3-compatible
// object store.
package s3

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vk/markpact/internal/config"
	"github.com/vk/markpact/internal/ctxlog"
	"github.com/vk/markpact/internal/publish"
	"github.com/vk/markpact/internal/registry"
	"github.com/vk/markpact/internal/sandbox"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the S3 publisher.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPublisher(publish.RegistryS3, &Publisher{})
}

// Publisher uploads `<name>/<version>/<name>-<version>.tar.gz`.
type Publisher struct{}

// Publish archives the sandbox and uploads it, creating the bucket when it
// does not exist yet.
func (p *Publisher) Publish(ctx context.Context, t registry.Target) registry.Result {
	logger := ctxlog.FromContext(ctx)
	hint := "set MARKPACT_S3_ENDPOINT, MARKPACT_S3_BUCKET and the access keys"

	store, err := newStore(t.Settings.S3)
	if err != nil {
		return registry.Failed(t, "Upload", err.Error(), hint)
	}

	archive, err := Archive(t.Sandbox)
	if err != nil {
		return registry.Failed(t, "Build", err.Error(), "")
	}

	key := ObjectKey(t.Config)
	logger.Info("Uploading archive.", "bucket", store.bucket, "key", key, "size", archive.Len())
	if err := store.put(ctx, key, archive); err != nil {
		return registry.Failed(t, "Upload", registry.Truncate(err.Error()), "check the bucket permissions of the access key")
	}

	scheme := "https"
	if !t.Settings.S3.UseSSL {
		scheme = "http"
	}
	return registry.Result{
		Success: true,
		Message: "Uploaded " + key,
		Version: t.Config.Version,
		URL:     fmt.Sprintf("%s://%s/%s/%s", scheme, store.endpoint, store.bucket, key),
	}
}

// ObjectKey is the object name a config is uploaded under.
func ObjectKey(c publish.Config) string {
	return fmt.Sprintf("%s/%s/%s-%s.tar.gz", c.Name, c.Version, c.Name, c.Version)
}

type store struct {
	client   *minio.Client
	endpoint string
	bucket   string
	region   string
}

func newStore(cfg config.S3Settings) (*store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &store{client: client, endpoint: endpoint, bucket: bucket, region: region}, nil
}

func (s *store) put(ctx context.Context, key string, body *bytes.Buffer) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, body, int64(body.Len()), minio.PutObjectOptions{
		ContentType: "application/gzip",
	})
	return err
}

// Archive packs the sandbox into a gzipped tarball. The dependency
// environment is left out.
func Archive(sb *sandbox.Sandbox) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	root := sb.Dir()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		if d.IsDir() && rel == sandbox.EnvironmentName {
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() && !d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("archive sandbox: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
