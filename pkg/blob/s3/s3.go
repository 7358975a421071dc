// Package s3 provides an Amazon S3 backed blob store implementing
// [blob.Store].
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/Tavasya/speakdrill/pkg/blob"
)

// Option is a functional option for configuring the Store.
type Option func(*Store)

// WithPrefix prepends a fixed key prefix to every object key.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithClient replaces the S3 client, mainly for tests.
func WithClient(c s3iface.S3API) Option {
	return func(s *Store) { s.client = c }
}

// Store implements [blob.Store] backed by an S3 bucket.
type Store struct {
	client s3iface.S3API
	region string
	bucket string
	prefix string
}

var _ blob.Store = (*Store)(nil)

// New creates an S3 blob store over bucket in region. bucket must be non-empty.
func New(region, bucket string, opts ...Option) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("s3: bucket must not be empty")
	}
	s := &Store{region: region, bucket: bucket}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
		if err != nil {
			return nil, fmt.Errorf("s3: session: %w", err)
		}
		s.client = awss3.New(sess)
	}
	return s, nil
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// refKey extracts the object key from a stored s3:// reference, rejecting
// refs minted by another bucket.
func (s *Store) refKey(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, "s3://"+s.bucket+"/")
	if !ok || rest == "" {
		return "", fmt.Errorf("s3: ref %q does not belong to bucket %q", ref, s.bucket)
	}
	return rest, nil
}

// Put implements [blob.Store].
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (blob.Object, error) {
	full := s.key(key)
	_, err := s.client.PutObjectWithContext(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(full),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return blob.Object{}, fmt.Errorf("s3: put %q: %w", full, err)
	}
	return blob.Object{
		Key:         full,
		Ref:         fmt.Sprintf("s3://%s/%s", s.bucket, full),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// Get implements [blob.Store].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	full := s.key(key)
	out, err := s.client.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: get %q: %w", full, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read %q: %w", full, err)
	}
	return data, nil
}

// PublicURL implements [blob.Store]. The URL only resolves when the bucket
// policy allows public reads.
func (s *Store) PublicURL(ref string) (string, error) {
	key, err := s.refKey(ref)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// SignedURL implements [blob.Store] via S3 request presigning.
func (s *Store) SignedURL(_ context.Context, ref string, ttl time.Duration) (string, error) {
	key, err := s.refKey(ref)
	if err != nil {
		return "", err
	}
	req, _ := s.client.GetObjectRequest(&awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("s3: presign %q: %w", key, err)
	}
	return url, nil
}

// Delete implements [blob.Store]. A missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	full := s.key(key)
	_, err := s.client.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
	})
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == awss3.ErrCodeNoSuchKey {
		return nil
	}
	if err != nil {
		return fmt.Errorf("s3: delete %q: %w", full, err)
	}
	return nil
}
