package artifact

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rhuss/codesmith/pkg/api"
)

// S3Config configures an S3Store.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Store writes artifacts to an S3-compatible bucket. Locators have the
// form s3://<bucket>/<key>.
type S3Store struct {
	client   *minio.Client
	bucket   string
	region   string
	prefix   string
	initOnce sync.Once
	initErr  error
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates an S3Store. The bucket is created on first use if it
// does not exist.
func NewS3Store(cfg S3Config) (*S3Store, error) {
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

	return &S3Store{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Persist uploads code and returns its s3:// locator.
func (s *S3Store) Persist(ctx context.Context, code string, lang api.Language, backend string, when time.Time) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", api.NewStorageError("ensure bucket", err)
	}

	key := s.objectKey(Name(backend, lang, when, api.ShortToken()))
	_, err := s.client.PutObject(ctx, s.bucket, key, strings.NewReader(code), int64(len(code)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", api.NewStorageError("upload artifact", err)
	}
	return s.locator(key), nil
}

// Read downloads the object behind an s3:// locator.
func (s *S3Store) Read(ctx context.Context, path string) ([]byte, error) {
	key, ok := s.keyFromLocator(path)
	if !ok {
		return nil, api.NewNotFoundError("artifact not found: " + path)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, api.NewStorageError("ensure bucket", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, api.NewStorageError("get artifact", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, api.NewNotFoundError("artifact not found: " + path)
		}
		return nil, api.NewStorageError("read artifact", err)
	}
	return data, nil
}

func (s *S3Store) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Store) locator(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func (s *S3Store) keyFromLocator(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "s3://"+s.bucket+"/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
