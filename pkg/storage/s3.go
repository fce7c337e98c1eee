package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures an S3Store.
type S3Config struct {
	Bucket    string
	Prefix    string // Optional key prefix inside the bucket
	Region    string
	Endpoint  string // Custom endpoint for S3-compatible services
	AccessKey string // Static credentials; empty uses the default chain
	SecretKey string
}

// S3Store keeps artifacts in an S3 bucket. Redirects are zero-byte objects
// carrying a website redirect location, which S3 static hosting serves as a
// 301 and which Get follows.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates an S3Store from cfg, loading the default AWS
// configuration for anything cfg leaves empty.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, stderrors.New("s3 storage requires a bucket")
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3StoreFromClient wraps an existing client.
func NewS3StoreFromClient(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) key(p string) (string, error) {
	c, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return c, nil
	}
	return path.Join(s.prefix, c), nil
}

func (s *S3Store) Put(ctx context.Context, p string, data []byte) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, p string) ([]byte, error) {
	key, err := s.key(p)
	if err != nil {
		return nil, err
	}
	data, redirect, err := s.get(ctx, key)
	if err != nil || redirect == "" {
		return data, err
	}
	data, _, err = s.get(ctx, strings.TrimPrefix(redirect, "/"))
	return data, err
}

func (s *S3Store) get(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read object %s: %w", key, err)
	}
	return data, aws.ToString(out.WebsiteRedirectLocation), nil
}

func (s *S3Store) Exists(ctx context.Context, p string) (bool, error) {
	key, err := s.key(p)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("head object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) Redirect(ctx context.Context, from, to string) error {
	src, err := s.key(from)
	if err != nil {
		return err
	}
	dst, err := s.key(to)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:                  aws.String(s.bucket),
		Key:                     aws.String(src),
		Body:                    bytes.NewReader(nil),
		ContentLength:           aws.Int64(0),
		WebsiteRedirectLocation: aws.String("/" + dst),
	})
	if err != nil {
		return fmt.Errorf("put redirect %s: %w", src, err)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if stderrors.As(err, &nsk) || stderrors.As(err, &nf) {
		return true
	}
	var re *awshttp.ResponseError
	return stderrors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".js":
		return "application/javascript"
	case ".map":
		return "application/json"
	}
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

var _ Store = (*S3Store)(nil)
