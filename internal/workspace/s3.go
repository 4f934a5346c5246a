package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	ErrS3AccessDenied     = errors.New("s3 access denied")
	ErrS3BucketNotFound   = errors.New("s3 bucket not found")
	ErrS3InvalidCreds     = errors.New("s3 invalid credentials")
	ErrS3Throttled        = errors.New("s3 request throttled")
	ErrS3Unavailable      = errors.New("s3 service unavailable")
	errS3ObjectNotPresent = errors.New("s3 object not found")
)

// S3Options mirrors the s3.* configuration keys.
type S3Options struct {
	Region          string
	Endpoint        string
	Profile         string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// S3API is the subset of the S3 client used for delivery.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Destination struct {
	Client         S3API
	Bucket         string
	Prefix         string
	AllowOverwrite bool
}

// NewS3Destination builds a client from the default AWS chain, overridden
// by any explicit options.
func NewS3Destination(ctx context.Context, opts S3Options, bucket, prefix string, allowOverwrite bool) (S3Destination, error) {
	if strings.TrimSpace(bucket) == "" {
		return S3Destination{}, fmt.Errorf("s3 bucket is required")
	}
	awsCfg, err := loadAWSConfig(ctx, opts)
	if err != nil {
		return S3Destination{}, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return S3Destination{
		Client:         client,
		Bucket:         bucket,
		Prefix:         prefix,
		AllowOverwrite: allowOverwrite,
	}, nil
}

func loadAWSConfig(ctx context.Context, opts S3Options) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, err
	}
	// S3-compatible stores often ignore the region but the signer needs one.
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	return awsCfg, nil
}

func (d S3Destination) String() string {
	return "s3://" + d.Bucket + "/" + strings.TrimPrefix(d.Prefix, "/")
}

func (d S3Destination) Key(name string) string {
	p := strings.Trim(d.Prefix, "/")
	if p == "" {
		return name
	}
	return path.Join(p, name)
}

func (d S3Destination) Deliver(ctx context.Context, src, name string) (string, error) {
	key := d.Key(name)
	if !d.AllowOverwrite {
		_, err := d.Client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(d.Bucket),
			Key:    aws.String(key),
		})
		switch {
		case err == nil:
			return "", fmt.Errorf("%w: s3://%s/%s", ErrDestinationExists, d.Bucket, key)
		case !errors.Is(mapS3Error(err), errS3ObjectNotPresent):
			return "", fmt.Errorf("head s3://%s/%s: %w", d.Bucket, key, mapS3Error(err))
		}
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", src, err)
	}

	_, err = d.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentTypeFor(name)),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", d.Bucket, key, mapS3Error(err))
	}
	return "s3://" + d.Bucket + "/" + key, nil
}

// mapS3Error wraps err with a sentinel for the common S3 failure codes.
func mapS3Error(err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		return fmt.Errorf("%w: %w", errS3ObjectNotPresent, err)
	case errors.As(err, &noSuchBucket):
		return fmt.Errorf("%w: %w", ErrS3BucketNotFound, err)
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %w", errS3ObjectNotPresent, err)
	case "NoSuchBucket":
		return fmt.Errorf("%w: %w", ErrS3BucketNotFound, err)
	case "AccessDenied", "Forbidden":
		return fmt.Errorf("%w: %w", ErrS3AccessDenied, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %w", ErrS3InvalidCreds, err)
	case "SlowDown", "Throttling", "RequestLimitExceeded":
		return fmt.Errorf("%w: %w", ErrS3Throttled, err)
	case "ServiceUnavailable", "InternalError":
		return fmt.Errorf("%w: %w", ErrS3Unavailable, err)
	}
	return err
}

// ParseS3URI splits "s3://bucket/prefix".
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 uri %q has no bucket", uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
