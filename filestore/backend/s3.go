package backend

import (
	"bytes"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Config describes where and how to reach the mirror bucket. Region may be
// empty to let the SDK resolve it from the environment/shared config, the
// way distribution's s3 storage driver does.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// S3Backend mirrors FileStore blobs into an S3 bucket, built on the same
// aws-sdk-go client distribution's s3 storagedriver uses.
type S3Backend struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Backend opens a session against cfg.Region (or the environment
// default) and returns a Backend keyed under cfg.Prefix within cfg.Bucket.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("opening s3 session: %w", err)
	}
	return &S3Backend{
		client: s3.New(sess),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (b *S3Backend) key(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

// Put implements Backend.
func (b *S3Backend) Put(key string, r io.Reader, size int64) error {
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	_, err := b.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.key(key)),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("uploading %q to s3: %w", key, err)
	}
	return nil
}

// Get implements Backend.
func (b *S3Backend) Get(key string) (io.ReadCloser, error) {
	resp, err := b.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %q from s3: %w", key, err)
	}
	return resp.Body, nil
}

// Exists implements Backend.
func (b *S3Backend) Exists(key string) (bool, error) {
	_, err := b.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(key)),
	})
	if err == nil {
		return true, nil
	}
	if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
		return false, nil
	}
	return false, fmt.Errorf("checking %q in s3: %w", key, err)
}
