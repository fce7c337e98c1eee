package bundler

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxExtractedFile bounds a single extracted file.
const maxExtractedFile = 64 << 20

// Extract unpacks a gzipped package tarball into dst. The top-level
// directory of every entry ("package/" for registry tarballs) is stripped.
// Entries escaping dst are rejected; links and special files are skipped.
func Extract(data []byte, dst string) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("open tarball: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tarball: %w", err)
		}

		rel := stripTopLevel(hdr.Name)
		if rel == "" {
			continue
		}
		target := filepath.Join(dst, filepath.FromSlash(rel))
		if !within(dst, target) {
			return fmt.Errorf("tarball entry %q escapes the package directory", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		}
	}
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644|(mode&0o111))
	if err != nil {
		return err
	}
	n, err := io.Copy(f, io.LimitReader(r, maxExtractedFile+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxExtractedFile {
		err = fmt.Errorf("tarball entry %s exceeds %d bytes", filepath.Base(target), maxExtractedFile)
	}
	return err
}

func stripTopLevel(name string) string {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	_, rest, ok := strings.Cut(name, "/")
	if !ok {
		return ""
	}
	return strings.TrimSuffix(rest, "/")
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
