package bundler

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestExtract(t *testing.T) {
	dst := t.TempDir()
	data := makeTarball(t, map[string]string{
		"package.json": `{"name":"a"}`,
		"lib/index.js": "module.exports = 1",
	})
	if err := Extract(data, dst); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	for _, name := range []string{"package.json", "lib/index.js"} {
		if !isFile(filepath.Join(dst, filepath.FromSlash(name))) {
			t.Errorf("%s not extracted", name)
		}
	}
	if isDir(filepath.Join(dst, "package")) {
		t.Error("top-level directory should be stripped")
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	body := "evil"
	_ = tw.WriteHeader(&tar.Header{Name: "package/../../evil.js", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg})
	_, _ = tw.Write([]byte(body))
	_ = tw.Close()
	_ = zw.Close()

	root := t.TempDir()
	dst := filepath.Join(root, "pkg")
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Extract(buf.Bytes(), dst); err == nil {
		t.Fatal("Extract() should reject entries escaping the destination")
	}
	if isFile(filepath.Join(root, "evil.js")) {
		t.Error("traversal entry was written")
	}
}

func TestExtractSkipsSymlinks(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	_ = tw.WriteHeader(&tar.Header{Name: "package/link", Linkname: "/etc/passwd", Typeflag: tar.TypeSymlink})
	_ = tw.Close()
	_ = zw.Close()

	dst := t.TempDir()
	if err := Extract(buf.Bytes(), dst); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(dst, "link")); !os.IsNotExist(err) {
		t.Error("symlink should be skipped")
	}
}

func TestExtractInvalid(t *testing.T) {
	if err := Extract([]byte("not gzip"), t.TempDir()); err == nil {
		t.Error("Extract() should fail on invalid data")
	}
}
