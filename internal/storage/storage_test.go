package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/onboarding/internal/config"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.PutReceipt(ctx, "receipts/app-1/r.pdf", "application/pdf", []byte("%PDF-1.4")))

	rc, ct, err := s.OpenReceipt(ctx, "receipts/app-1/r.pdf")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "application/pdf", ct)

	_, _, err = s.OpenReceipt(ctx, "receipts/app-1/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"../etc/passwd", "/abs/path", "..", "."} {
		assert.Error(t, s.PutReceipt(context.Background(), key, "text/plain", []byte("x")), key)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	_, err = New(context.Background(), config.StorageConfig{Type: "s3"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    []byte
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b)), ContentType: aws.String("image/png")}, nil
}

func TestS3StorePutReceipt(t *testing.T) {
	fake := &fakeS3{}
	s := &S3Store{client: fake, bucket: "receipts"}

	require.NoError(t, s.PutReceipt(context.Background(), "receipts/app-1/x.png", "image/png", []byte{0x89, 'P', 'N', 'G'}))
	assert.Equal(t, "receipts", aws.ToString(fake.put.Bucket))
	assert.Equal(t, "receipts/app-1/x.png", aws.ToString(fake.put.Key))
	assert.Equal(t, "image/png", aws.ToString(fake.put.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(fake.put.ContentLength))
	assert.Equal(t, types.ServerSideEncryptionAes256, fake.put.ServerSideEncryption)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, fake.body)
}

func TestS3StoreOpenReceipt(t *testing.T) {
	s := &S3Store{client: &fakeS3{objects: map[string][]byte{"k": []byte("img")}}, bucket: "receipts"}

	rc, ct, err := s.OpenReceipt(context.Background(), "k")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/png", ct)

	_, _, err = s.OpenReceipt(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
