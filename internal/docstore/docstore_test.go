package docstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(string(data))),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func testService(mock *mockS3Client) *Service {
	return &Service{cfg: Config{Bucket: "docs"}, client: mock}
}

func TestPutGetDelete(t *testing.T) {
	mock := newMockS3()
	svc := testService(mock)
	ctx := context.Background()

	key, err := svc.Put(ctx, strings.NewReader("w2 contents"), "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if key == "" {
		t.Fatal("expected generated object key")
	}

	body, err := svc.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "w2 contents" {
		t.Errorf("body = %q, want %q", data, "w2 contents")
	}

	if err := svc.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, key); err == nil {
		t.Error("expected error reading deleted object")
	}
}

func TestPutKeysAreUnique(t *testing.T) {
	mock := newMockS3()
	svc := testService(mock)
	ctx := context.Background()

	k1, _ := svc.Put(ctx, strings.NewReader("a"), "text/plain")
	k2, _ := svc.Put(ctx, strings.NewReader("b"), "text/plain")
	if k1 == k2 {
		t.Error("object keys must be unique per upload")
	}
}

func TestUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if svc.Configured() {
		t.Error("expected Configured() = false without credentials")
	}
	if _, err := svc.Put(context.Background(), strings.NewReader("x"), "text/plain"); err == nil {
		t.Error("expected error from unconfigured Put")
	}
}

func TestPutError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("bucket gone")
	svc := testService(mock)

	if _, err := svc.Put(context.Background(), strings.NewReader("x"), "text/plain"); err == nil {
		t.Fatal("expected error from failed upload")
	}
}
