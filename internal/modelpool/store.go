package modelpool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Artifact file names inside each model's folder
const (
	ModelFile  = "xgb_model.json"
	ScalerFile = "scaler.json"
)

// ArtifactStore resolves a model name and file to readable content
type ArtifactStore interface {
	Open(ctx context.Context, model, file string) (io.ReadCloser, error)
	String() string
}

// FirstMatch returns the first candidate accepted by ok
func FirstMatch(candidates []string, ok func(string) bool) (string, bool) {
	for _, c := range candidates {
		if ok(c) {
			return c, true
		}
	}
	return "", false
}

// DirStore reads artifacts from local directories laid out as <root>/<model>/<file>.
// Roots are searched in order and the first containing the model file wins.
type DirStore struct {
	roots []string
}

// NewDirStore returns a store over roots in priority order
func NewDirStore(roots ...string) *DirStore {
	return &DirStore{roots: append([]string(nil), roots...)}
}

// Resolve returns the folder holding model, if any root has it
func (s *DirStore) Resolve(model string) (string, bool) {
	folders := make([]string, 0, len(s.roots))
	for _, root := range s.roots {
		folders = append(folders, filepath.Join(root, model))
	}
	return FirstMatch(folders, func(dir string) bool {
		info, err := os.Stat(filepath.Join(dir, ModelFile))
		return err == nil && !info.IsDir()
	})
}

// Open opens file for model from the first root holding the model
func (s *DirStore) Open(_ context.Context, model, file string) (io.ReadCloser, error) {
	if strings.ContainsAny(model, `/\`) || model == ".." {
		return nil, fmt.Errorf("invalid model name %q", model)
	}
	dir, ok := s.Resolve(model)
	if !ok {
		return nil, fmt.Errorf("%s not found for %q in %v", ModelFile, model, s.roots)
	}
	f, err := os.Open(filepath.Join(dir, file))
	if err != nil {
		return nil, fmt.Errorf("%s for %q: %w", file, model, err)
	}
	return f, nil
}

func (s *DirStore) String() string {
	return "dir:" + strings.Join(s.roots, ",")
}

// S3Config holds the object storage settings for model artifacts
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Store reads artifacts from an S3-compatible bucket at <prefix>/<model>/<file>
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Store creates a MinIO client for the configured bucket
func NewS3Store(cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ObjectKey returns the key for a model artifact
func (s *S3Store) ObjectKey(model, file string) string {
	return path.Join(s.prefix, model, file)
}

// Open fetches the object. GetObject is lazy, so Stat is used to surface a
// missing key here rather than on first read.
func (s *S3Store) Open(ctx context.Context, model, file string) (io.ReadCloser, error) {
	key := s.ObjectKey(model, file)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat s3://%s/%s: %w", s.bucket, key, err)
	}
	return obj, nil
}

func (s *S3Store) String() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)
}
