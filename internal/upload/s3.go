package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/keithlinneman/linnemanlabs-cms/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// S3API is the subset of the S3 client the store needs.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps uploads as objects under Prefix in Bucket.
type S3Store struct {
	Client S3API
	Bucket string
	Prefix string
}

func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{Client: client, Bucket: bucket, Prefix: prefix}
}

func (s *S3Store) key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}

// Put uploads body with its SHA-256 as both checksum and metadata. Names
// are unique so objects are marked immutable for caches.
func (s *S3Store) Put(ctx context.Context, name, contentType string, body io.Reader) (Object, error) {
	if !ValidName(name) {
		return Object{}, ErrInvalidName
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Object{}, xerrors.Wrap(err, "read upload body")
	}
	sum := cryptoutil.SHA256(data)
	key := s.key(name)

	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(s.Bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ContentType:    aws.String(contentType),
		CacheControl:   aws.String("public, max-age=31536000, immutable"),
		ChecksumSHA256: aws.String(sum.Base64),
		Metadata:       map[string]string{"sha256": sum.Hex},
	})
	if err != nil {
		return Object{}, xerrors.Wrapf(err, "put S3 object s3://%s/%s", s.Bucket, key)
	}
	return Object{Name: name, ContentType: contentType, Size: int64(len(data)), SHA256: sum.Hex}, nil
}

func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, Info, error) {
	if !ValidName(name) {
		return nil, Info{}, ErrNotFound
	}
	key := s.key(name)
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, Info{}, ErrNotFound
		}
		return nil, Info{}, xerrors.Wrapf(err, "get S3 object s3://%s/%s", s.Bucket, key)
	}
	return out.Body, Info{
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		ModTime:     aws.ToTime(out.LastModified),
	}, nil
}
