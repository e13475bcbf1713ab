package attachments_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
)

// MockS3Client mocks the S3Client interface.
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

func newTestS3Driver(t *testing.T, client attachments.S3Client) *attachments.S3Driver {
	t.Helper()

	driver, err := attachments.NewS3Driver(context.Background(), attachments.S3Config{
		Bucket:    "test-bucket",
		Region:    "us-east-1",
		KeyPrefix: "attachments",
	}, attachments.WithS3Client(client))
	require.NoError(t, err)
	return driver
}

func TestNewS3Driver_Validation(t *testing.T) {
	_, err := attachments.NewS3Driver(context.Background(), attachments.S3Config{})
	assert.ErrorIs(t, err, attachments.ErrInvalidConfig)
}

func TestS3Driver_Put(t *testing.T) {
	ctx := context.Background()

	client := new(MockS3Client)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "test-bucket" &&
			*in.Key == "attachments/ab/abcdef" &&
			*in.ContentType == "text/plain"
	})).Return(&s3.PutObjectOutput{}, nil)

	driver := newTestS3Driver(t, client)
	require.NoError(t, driver.Put(ctx, "ab/abcdef", []byte("content"), "text/plain"))
	client.AssertExpectations(t)
}

func TestS3Driver_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("returns object body", func(t *testing.T) {
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return *in.Key == "attachments/ab/abcdef"
		})).Return(&s3.GetObjectOutput{
			Body: io.NopCloser(strings.NewReader("content")),
		}, nil)

		driver := newTestS3Driver(t, client)
		rc, err := driver.Open(ctx, "ab/abcdef")
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, []byte("content"), data)
	})

	t.Run("missing key maps to ErrFileNotFound", func(t *testing.T) {
		client := new(MockS3Client)
		client.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{})

		driver := newTestS3Driver(t, client)
		_, err := driver.Open(ctx, "ff/ffffff")
		assert.ErrorIs(t, err, attachments.ErrFileNotFound)
	})
}

func TestS3Driver_Delete(t *testing.T) {
	client := new(MockS3Client)
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "attachments/ab/abcdef"
	})).Return(&s3.DeleteObjectOutput{}, nil)

	driver := newTestS3Driver(t, client)
	require.NoError(t, driver.Delete(context.Background(), "ab/abcdef"))
	client.AssertExpectations(t)
}

func TestS3Driver_URL(t *testing.T) {
	t.Run("default amazon url", func(t *testing.T) {
		driver := newTestS3Driver(t, new(MockS3Client))
		assert.Equal(t,
			"https://test-bucket.s3.us-east-1.amazonaws.com/attachments/ab/abc",
			driver.URL("ab/abc"),
		)
	})

	t.Run("custom endpoint url", func(t *testing.T) {
		driver, err := attachments.NewS3Driver(context.Background(), attachments.S3Config{
			Bucket:   "test-bucket",
			Region:   "us-east-1",
			Endpoint: "http://localhost:9000",
		}, attachments.WithS3Client(new(MockS3Client)))
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:9000/test-bucket/ab/abc", driver.URL("ab/abc"))
	})
}
