package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func readAll(t *testing.T, s FileStore, p string) string {
	t.Helper()
	rc, err := s.Get(context.Background(), p)
	if err != nil {
		t.Fatalf("Get(%s): %v", p, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestFileStores(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	stores := map[string]FileStore{
		"local": local,
		"s3":    NewS3(newFakeS3(), "bucket", "wonderchat"),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Put(ctx, "logs/a.log", []byte("first")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Put(ctx, "logs/a.log", []byte("second")); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			if got := readAll(t, s, "logs/a.log"); got != "second" {
				t.Errorf("Get = %q, want %q", got, "second")
			}
			if err := s.Delete(ctx, "logs/a.log"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete(ctx, "logs/a.log"); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
			if _, err := s.Get(ctx, "logs/a.log"); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("Get deleted: err = %v, want os.ErrNotExist", err)
			}
		})
	}
}

func TestS3Prefix(t *testing.T) {
	fake := newFakeS3()
	s := NewS3(fake, "bucket", "exports")
	if err := s.Put(context.Background(), "logs/x.log", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.objects["bucket/exports/logs/x.log"]; !ok {
		t.Errorf("objects = %v, want key under the prefix", fake.objects)
	}
}

func TestArchive(t *testing.T) {
	fake := newFakeS3()
	a := NewArchive(NewS3(fake, "bucket", ""))
	a.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC) }

	p, err := a.SaveDebugLog(context.Background(), "a1b2c3d4", "[ts] [a1b2c3d4] hello")
	if err != nil {
		t.Fatalf("SaveDebugLog: %v", err)
	}
	if want := "logs/2024-03-09/a1b2c3d4-140506.log"; p != want {
		t.Errorf("path = %q, want %q", p, want)
	}
	if got := readAll(t, NewS3(fake, "bucket", ""), p); got != "[ts] [a1b2c3d4] hello" {
		t.Errorf("stored log = %q", got)
	}

	p, err = a.SaveTranscript(context.Background(), "s1", ".json", []byte("[]"))
	if err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	if want := "transcripts/2024-03-09/s1-140506.json"; p != want {
		t.Errorf("path = %q, want %q", p, want)
	}
}

func TestArchiveErrors(t *testing.T) {
	fake := newFakeS3()
	a := NewArchive(NewS3(fake, "bucket", ""))
	if _, err := a.SaveDebugLog(context.Background(), "../etc", "x"); err == nil {
		t.Error("session id with a slash accepted")
	}
	fake.putErr = &apiError{code: "AccessDenied"}
	if _, err := a.SaveDebugLog(context.Background(), "s1", "x"); err == nil {
		t.Error("upload failure not reported")
	}
}
