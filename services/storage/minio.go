package storagesvc

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorhub/core"
)

type minioStore struct {
	client *minio.Client
	bucket string
}

var _ core.FileStore = (*minioStore)(nil)

// NewMinioStore connects to the object storage and creates the bucket if needed.
func NewMinioStore(conf *core.Config) (core.FileStore, error) {
	client, err := minio.New(conf.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.Storage.AccessKey, conf.Storage.SecretKey, ""),
		Secure: conf.Storage.UseSSL,
		Region: conf.Storage.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, conf.Storage.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "checking bucket")
	}
	if !exists {
		err = client.MakeBucket(ctx, conf.Storage.Bucket, minio.MakeBucketOptions{Region: conf.Storage.Region})
		if err != nil {
			return nil, errors.Wrap(err, "creating bucket")
		}
	}
	return &minioStore{client: client, bucket: conf.Storage.Bucket}, nil
}

func (s *minioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrapf(err, "uploading %q", key)
}

func (s *minioStore) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", errors.Wrapf(err, "signing %q", key)
	}
	return u.String(), nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	return errors.Wrapf(err, "deleting %q", key)
}
