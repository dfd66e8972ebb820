package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/hivekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory stand-in for the S3 client.
type fakeS3 struct {
	objects map[string][]byte
	err     error

	lastBucket string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastBucket = aws.ToString(in.Bucket)
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := newS3Store(fake, "vault", "dht/")

	require.NoError(t, s.Put(ctx, "abc", []byte("v")))
	assert.Equal(t, "vault", fake.lastBucket)
	assert.Contains(t, fake.objects, "dht/abc")

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, "abc"))
	_, err = s.Get(ctx, "abc")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "s3", s.Name())
}

func TestS3Store_BackendErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.err = errors.New("connection refused")
	s := newS3Store(fake, "vault", "")

	assert.ErrorIs(t, s.Put(ctx, "k", []byte("v")), common.ErrBackendUnavailable)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)
	assert.NotErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "k"), common.ErrBackendUnavailable)
}

func TestNewS3Store_BuildsClient(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3Config{
		AccessKey:    "admin",
		SecretKey:    "secretpassword",
		Bucket:       "vault",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000/",
		Prefix:       "dht/",
	})
	require.NoError(t, err)
	assert.Equal(t, "vault", s.bucket)
	assert.Equal(t, "dht/", s.prefix)
	_, ok := s.client.(*s3.Client)
	assert.True(t, ok)
}
