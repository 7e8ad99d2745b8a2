package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3 stores uploads in a bucket. When passphrase is non-empty, objects are
// encrypted at rest with AES-GCM using a PBKDF2-derived key (see crypt.go).
type S3 struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	prefix     string
	passphrase string
}

type S3Options struct {
	Bucket     string
	Prefix     string
	Passphrase string
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("missing S3 bucket")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		bucket:     opts.Bucket,
		prefix:     strings.Trim(opts.Prefix, "/"),
		passphrase: opts.Passphrase,
	}, nil
}

func (s *S3) keyFor(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	body := r
	if s.passphrase != "" {
		plain, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read upload: %w", err)
		}
		sealed, err := seal(plain, s.passphrase)
		if err != nil {
			return "", fmt.Errorf("encrypt upload: %w", err)
		}
		body = bytes.NewReader(sealed)
	}

	key := s.keyFor(name)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Debug().Str("bucket", s.bucket).Str("key", key).Bool("encrypted", s.passphrase != "").Msg("stored document in S3")
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := parseS3Ref(ref)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}
	if isSealed(data) {
		if s.passphrase == "" {
			return nil, fmt.Errorf("object %s is encrypted and no passphrase is configured", ref)
		}
		return open(data, s.passphrase)
	}
	return data, nil
}

func (s *S3) Fetch(ctx context.Context, ref string) (string, func(), error) {
	data, err := s.Get(ctx, ref)
	if err != nil {
		return "", func() {}, err
	}
	// go-fitz and pdfcpu want a .pdf path on disk
	f, err := os.CreateTemp("", "s3pdf-*.pdf")
	if err != nil {
		return "", func() {}, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", func() {}, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", func() {}, err
	}
	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}

func parseS3Ref(ref string) (bucket, key string, err error) {
	path := strings.TrimPrefix(ref, "s3://")
	slash := strings.Index(path, "/")
	if slash <= 0 || slash == len(path)-1 {
		return "", "", fmt.Errorf("invalid s3 ref: %s", ref)
	}
	return path[:slash], path[slash+1:], nil
}
