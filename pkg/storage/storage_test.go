package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 is a path-style S3 endpoint holding one bucket in memory.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	redirects map[string]string
	types     map[string]string
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	f := &fakeS3{objects: map[string][]byte{}, redirects: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != "artifacts" {
		http.Error(w, "no such bucket", http.StatusNotFound)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		f.types[key] = r.Header.Get("Content-Type")
		if loc := r.Header.Get("X-Amz-Website-Redirect-Location"); loc != "" {
			f.redirects[key] = loc
		} else {
			delete(f.redirects, key)
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		if loc, ok := f.redirects[key]; ok {
			w.Header().Set("X-Amz-Website-Redirect-Location", loc)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T, prefix string) (*S3Store, *fakeS3) {
	f, srv := newFakeS3(t)
	client := s3.New(s3.Options{
		BaseEndpoint:               aws.String(srv.URL),
		Region:                     "us-east-1",
		Credentials:                credentials.NewStaticCredentialsProvider("key", "secret", ""),
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return NewS3StoreFromClient(client, "artifacts", prefix), f
}

func stores(t *testing.T) map[string]Store {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s3s, _ := newTestS3Store(t, "")
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"s3":     s3s,
	}
}

const bundlePath = "0/lodash@4.17.21-ios/bundle.js"

func TestPutGetExists(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if ok, err := s.Exists(ctx, bundlePath); err != nil || ok {
				t.Fatalf("Exists before Put = %v, %v", ok, err)
			}
			if _, err := s.Get(ctx, bundlePath); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get before Put error = %v, want ErrNotFound", err)
			}

			if err := s.Put(ctx, bundlePath, []byte("module.exports=1")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if ok, err := s.Exists(ctx, bundlePath); err != nil || !ok {
				t.Errorf("Exists after Put = %v, %v", ok, err)
			}
			data, err := s.Get(ctx, bundlePath)
			if err != nil || string(data) != "module.exports=1" {
				t.Errorf("Get = %q, %v", data, err)
			}
		})
	}
}

func TestZeroByteMarker(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			marker := "0/lodash@4.17.21-ios/.done"
			if err := s.Put(ctx, marker, nil); err != nil {
				t.Fatalf("Put marker: %v", err)
			}
			if ok, _ := s.Exists(ctx, marker); !ok {
				t.Error("zero-byte marker should exist")
			}
			data, err := s.Get(ctx, marker)
			if err != nil || len(data) != 0 {
				t.Errorf("Get marker = %q, %v", data, err)
			}
		})
	}
}

func TestRedirect(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			v1 := "0/lodash@4.17.20-ios/bundle.js"
			v2 := "0/lodash@4.17.21-ios/bundle.js"
			floating := "0/lodash@latest-ios/bundle.js"
			_ = s.Put(ctx, v1, []byte("v1"))
			_ = s.Put(ctx, v2, []byte("v2"))

			if err := s.Redirect(ctx, floating, v1); err != nil {
				t.Fatalf("Redirect: %v", err)
			}
			if ok, _ := s.Exists(ctx, floating); !ok {
				t.Error("redirect should exist")
			}
			if data, err := s.Get(ctx, floating); err != nil || string(data) != "v1" {
				t.Errorf("Get redirect = %q, %v", data, err)
			}

			if err := s.Redirect(ctx, floating, v2); err != nil {
				t.Fatalf("second Redirect: %v", err)
			}
			if data, _ := s.Get(ctx, floating); string(data) != "v2" {
				t.Errorf("rewritten redirect = %q, want v2", data)
			}

			if data, _ := s.Get(ctx, v1); string(data) != "v1" {
				t.Errorf("redirect must not touch its old target, got %q", data)
			}
		})
	}
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"", "/abs", "../escape", "a/../../b", `a\b`} {
				if err := s.Put(ctx, p, []byte("x")); err == nil {
					t.Errorf("Put(%q) should fail", p)
				}
			}
		})
	}
}

func TestFileStoreRedirectIsSymlink(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	_ = s.Put(ctx, "0/a@1.0.0-web/bundle.js", []byte("a"))
	if err := s.Redirect(ctx, "0/a@latest-web/bundle.js", "0/a@1.0.0-web/bundle.js"); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(s.Root(), "0", "a@latest-web", "bundle.js")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != filepath.Join("..", "a@1.0.0-web", "bundle.js") {
		t.Errorf("symlink target = %q", target)
	}

	if err := s.Put(ctx, "0/a@latest-web/bundle.js", []byte("direct")); err != nil {
		t.Fatal(err)
	}
	if data, _ := s.Get(ctx, "0/a@1.0.0-web/bundle.js"); string(data) != "a" {
		t.Errorf("Put over a redirect must not write through it, target = %q", data)
	}
}

func TestS3StorePrefixAndContentType(t *testing.T) {
	ctx := context.Background()
	s, f := newTestS3Store(t, "/bundles/")

	_ = s.Put(ctx, bundlePath, []byte("x"))
	_ = s.Put(ctx, "0/lodash@4.17.21-ios/bundle.js.map", []byte("{}"))
	if err := s.Redirect(ctx, "0/lodash@latest-ios/bundle.js", bundlePath); err != nil {
		t.Fatal(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects["bundles/"+bundlePath]; !ok {
		t.Errorf("object keys = %v, want prefix bundles/", f.objects)
	}
	if got := f.types["bundles/"+bundlePath]; got != "application/javascript" {
		t.Errorf("content type = %q", got)
	}
	if got := f.types["bundles/0/lodash@4.17.21-ios/bundle.js.map"]; got != "application/json" {
		t.Errorf("map content type = %q", got)
	}
	if got := f.redirects["bundles/0/lodash@latest-ios/bundle.js"]; got != "/bundles/"+bundlePath {
		t.Errorf("redirect location = %q", got)
	}
}

func TestMemoryStoreInspection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Put(ctx, "b", nil)
	_ = s.Put(ctx, "a", nil)
	_ = s.Redirect(ctx, "c", "a")
	if got := s.Paths(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Paths() = %v", got)
	}
	if to, ok := s.RedirectTarget("c"); !ok || to != "a" {
		t.Errorf("RedirectTarget(c) = %q, %v", to, ok)
	}
}
