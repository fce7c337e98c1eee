package bundler

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/snackager/pkg/deps"
	"github.com/matzehuels/snackager/pkg/externals"
	"github.com/matzehuels/snackager/pkg/request"
)

// makeTarball packs files under "package/" like a registry tarball.
func makeTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		body := files[name]
		hdr := &tar.Header{Name: "package/" + name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeFetcher struct {
	tarball []byte
	err     error
}

func (f *fakeFetcher) FetchTarball(ctx context.Context, pv *deps.PackageVersion) ([]byte, error) {
	return f.tarball, f.err
}

// fakeInstaller installs the packages of available that package.json asks
// for, as node_modules/<name>/index.js. Unknown packages are silently
// skipped, like an install that succeeds without providing the module.
type fakeInstaller struct {
	available map[string]bool
	mu        sync.Mutex
	runs      []map[string]string
}

func (f *fakeInstaller) Install(ctx context.Context, dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return err
	}
	var doc struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	f.mu.Lock()
	f.runs = append(f.runs, doc.Dependencies)
	f.mu.Unlock()
	for name := range doc.Dependencies {
		if !f.available[name] {
			continue
		}
		pkg := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if err := os.MkdirAll(pkg, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(pkg, "index.js"), []byte("module.exports = {}"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

var requireRe = regexp.MustCompile(`require\("([^"]+)"\)`)

// fakeToolchain "bundles" an entry by checking that every bare require of
// the entry file is external or installed. fail, when set, overrides the
// outcome for a platform.
type fakeToolchain struct {
	mu    sync.Mutex
	calls map[request.Platform]int
	fail  func(t Target) error
}

func (f *fakeToolchain) Build(ctx context.Context, t Target) (Files, []string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[request.Platform]int{}
	}
	f.calls[t.Platform]++
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(t); err != nil {
			return nil, nil, err
		}
	}

	src, err := os.ReadFile(t.Entry)
	if err != nil {
		return nil, nil, err
	}
	var missing, imports []string
	for _, m := range requireRe.FindAllStringSubmatch(string(src), -1) {
		name := externals.PackageName(m[1])
		if name == "" {
			continue
		}
		if t.External(name) {
			imports = append(imports, m[1])
			continue
		}
		if !isDir(filepath.Join(t.Dir, "node_modules", filepath.FromSlash(name))) {
			missing = append(missing, `Could not resolve "`+m[1]+`"`)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &ToolchainError{Platform: t.Platform, Messages: missing}
	}
	return Files{BundleFile: src, SourceMapFile: []byte("{}")}, imports, nil
}

func resolution(name string, pv *deps.PackageVersion) *deps.Resolution {
	pv.Name = name
	if pv.Version == "" {
		pv.Version = "1.0.0"
	}
	policy := externals.Default()
	return &deps.Resolution{
		Name:         name,
		Version:      pv.Version,
		Package:      pv,
		Dependencies: deps.ResolveDependencies(pv, policy),
		Handle:       deps.Handle(name, "", pv.Version),
	}
}
