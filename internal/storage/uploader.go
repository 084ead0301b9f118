// Package storage publishes local files on an S3-compatible object store
// (MinIO in production) so the speech recognition service can fetch them.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"todocx/internal/config"
	apperrors "todocx/internal/errors"
)

// ErrNotConfigured is returned when no endpoint or credentials are set
var ErrNotConfigured = errors.New("object storage not configured")

// Uploader puts files into one bucket and returns a URL anyone can GET
type Uploader struct {
	api        *s3.Client
	presign    *s3.PresignClient
	bucket     string
	folder     string
	publicBase string
	presignTTL time.Duration
	logger     *slog.Logger
}

// NewUploader builds an S3 client for cfg. Path-style addressing is used
// because MinIO does not serve virtual-hosted buckets by default.
func NewUploader(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(timeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(endpoint)
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	publicBase := endpoint
	if cfg.CDNEndpoint != "" {
		publicBase = cfg.CDNEndpoint
		if !strings.HasPrefix(publicBase, "http://") && !strings.HasPrefix(publicBase, "https://") {
			publicBase = "https://" + publicBase
		}
	}

	return &Uploader{
		api:        client,
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		folder:     strings.Trim(cfg.Folder, "/"),
		publicBase: strings.TrimRight(publicBase, "/"),
		presignTTL: cfg.PresignTTL,
		logger:     logger.With(slog.String("component", "object_storage")),
	}, nil
}

// EnsureBucket creates the bucket when missing and grants anonymous read on
// its objects.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	_, err := u.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &u.bucket})
	if err == nil {
		return nil
	}

	var notFound *s3types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("%w: head bucket %s: %v", apperrors.ErrUpload, u.bucket, err)
	}

	if _, err := u.api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &u.bucket}); err != nil {
		return fmt.Errorf("%w: create bucket %s: %v", apperrors.ErrUpload, u.bucket, err)
	}
	u.logger.InfoContext(ctx, "Created bucket", slog.String("bucket", u.bucket))

	policy, _ := json.Marshal(publicReadPolicy(u.bucket))
	if _, err := u.api.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: &u.bucket,
		Policy: aws.String(string(policy)),
	}); err != nil {
		u.logger.WarnContext(ctx, "Failed to set public read policy",
			slog.String("bucket", u.bucket),
			slog.String("error", err.Error()))
	}
	return nil
}

func publicReadPolicy(bucket string) map[string]interface{} {
	return map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{{
			"Effect":    "Allow",
			"Principal": map[string]interface{}{"AWS": "*"},
			"Action":    []string{"s3:GetObject"},
			"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", bucket)},
		}},
	}
}

// Upload stores the file at localPath and returns its public URL
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", apperrors.ErrUpload, filepath.Base(localPath), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: stat: %v", apperrors.ErrUpload, err)
	}
	digest, err := fileSHA256(f)
	if err != nil {
		return "", fmt.Errorf("%w: hash: %v", apperrors.ErrUpload, err)
	}

	key := ObjectKey(u.folder, info.ModTime(), info.Name())
	size := info.Size()
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = u.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &u.bucket,
		Key:           &key,
		Body:          f,
		ContentLength: &size,
		ContentType:   &contentType,
		Metadata:      map[string]string{"sha256": digest},
	})
	if err != nil {
		u.logger.ErrorContext(ctx, "Upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: put %s: %v", apperrors.ErrUpload, key, err)
	}

	link, err := u.URL(ctx, key)
	if err != nil {
		return "", err
	}
	u.logger.InfoContext(ctx, "File uploaded",
		slog.String("key", key),
		slog.Int64("size_bytes", size))
	return link, nil
}

// URL returns the address of key: a presigned GET when a TTL is configured,
// otherwise the public (CDN or endpoint) path.
func (u *Uploader) URL(ctx context.Context, key string) (string, error) {
	if u.presignTTL > 0 {
		req, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: &u.bucket,
			Key:    &key,
		}, func(opts *s3.PresignOptions) {
			opts.Expires = u.presignTTL
		})
		if err != nil {
			return "", fmt.Errorf("%w: presign %s: %v", apperrors.ErrUpload, key, err)
		}
		return req.URL, nil
	}
	return u.publicBase + "/" + path.Join(url.PathEscape(u.bucket), escapeKey(key)), nil
}

// ObjectKey names an upload "{folder}/{mtime}_{name}" with spaces replaced
func ObjectKey(folder string, modTime time.Time, name string) string {
	base := fmt.Sprintf("%d_%s", modTime.Unix(), strings.ReplaceAll(name, " ", "_"))
	if folder == "" {
		return base
	}
	return folder + "/" + base
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func fileSHA256(f *os.File) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
