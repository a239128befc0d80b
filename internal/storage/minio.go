package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures the object-store backend.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is the upload root inside the bucket; empty means the bucket root.
	Prefix string
}

// Minio stores files as objects under <bucket>/<prefix>/<name>.
type Minio struct {
	client  *minio.Client
	bucket  string
	prefix  string
	breaker *CircuitBreaker
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// Bare host:port is treated as plain HTTP, the usual local MinIO setup.
	return raw, false, nil
}

func normalisePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// NewMinio connects to the object store and verifies the bucket exists.
func NewMinio(ctx context.Context, opts MinioOptions) (*Minio, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	m := &Minio{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  normalisePrefix(opts.Prefix),
		breaker: NewCircuitBreaker("minio", 5, 30*time.Second),
	}
	if err := m.Check(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Minio) Location() string {
	if m.prefix == "" {
		return "s3://" + m.bucket
	}
	return "s3://" + m.bucket + "/" + m.prefix
}

func (m *Minio) key(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if m.prefix == "" {
		return name, nil
	}
	return m.prefix + "/" + name, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (m *Minio) Save(ctx context.Context, name string, r io.Reader, contentType string) (int64, error) {
	key, err := m.key(name)
	if err != nil {
		return 0, err
	}

	var size int64
	err = m.breaker.Execute(func() error {
		info, err := m.client.PutObject(ctx, m.bucket, key, r, -1, minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return err
		}
		size = info.Size
		return nil
	})
	if err != nil {
		return size, fmt.Errorf("put object %s: %w", key, err)
	}
	return size, nil
}

func (m *Minio) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := m.key(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var (
		obj      *minio.Object
		notFound bool
	)
	err = m.breaker.Execute(func() error {
		o, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		// GetObject is lazy; Stat forces the request so a missing key
		// surfaces here rather than on the first Read.
		if _, err := o.Stat(); err != nil {
			_ = o.Close()
			if isNoSuchKey(err) {
				notFound = true
				return nil
			}
			return err
		}
		obj = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	if notFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return obj, nil
}

func (m *Minio) Walk(ctx context.Context, maxDepth int, fn func(Object) error) error {
	listPrefix := ""
	if m.prefix != "" {
		listPrefix = m.prefix + "/"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stop error
	err := m.breaker.Execute(func() error {
		for info := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: listPrefix, Recursive: true}) {
			if info.Err != nil {
				return info.Err
			}
			rel := strings.TrimPrefix(info.Key, listPrefix)
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue
			}
			if strings.Count(rel, "/")+1 > maxDepth {
				continue
			}
			if err := fn(Object{
				Name:    path.Base(rel),
				Path:    rel,
				Size:    info.Size,
				ModTime: info.LastModified,
			}); err != nil {
				stop = err
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	return stop
}

// Check verifies the bucket exists.
func (m *Minio) Check(ctx context.Context) error {
	var exists bool
	err := m.breaker.Execute(func() error {
		var err error
		exists, err = m.client.BucketExists(ctx, m.bucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("bucket check: %w", err)
	}
	if !exists {
		return errors.New("minio bucket does not exist: " + m.bucket)
	}
	return nil
}
