package bundler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/snackager/pkg/request"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestResolveEntryPlatformOrder(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/index.ios.js":    "",
		"src/index.native.ts": "",
		"src/index.web.tsx":   "",
		"src/index.js":        "",
	})
	m := &Manifest{Main: "src/index.js"}

	tests := []struct {
		platform request.Platform
		want     string
	}{
		{request.IOS, "src/index.ios.js"},
		{request.Android, "src/index.native.ts"},
		{request.Web, "src/index.web.tsx"},
	}
	for _, tt := range tests {
		got, ok := ResolveEntry(dir, "", tt.platform, m)
		if !ok {
			t.Fatalf("ResolveEntry(%s) not found", tt.platform)
		}
		if got != filepath.Join(dir, filepath.FromSlash(tt.want)) {
			t.Errorf("ResolveEntry(%s) = %s, want %s", tt.platform, got, tt.want)
		}
	}
}

func TestResolveEntryFields(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"rn.js":      "",
		"browser.js": "",
		"main.js":    "",
		"index.js":   "",
	})

	tests := []struct {
		name     string
		m        Manifest
		platform request.Platform
		want     string
	}{
		{"react-native first", Manifest{ReactNative: "rn.js", Browser: "browser.js", Main: "main.js"}, request.IOS, "rn.js"},
		{"browser on web only", Manifest{Browser: "browser.js", Main: "main.js"}, request.Web, "browser.js"},
		{"browser ignored on native", Manifest{Browser: "browser.js", Main: "main.js"}, request.Android, "main.js"},
		{"browser replacement map ignored", Manifest{Browser: map[string]any{"./x": false}, Main: "main.js"}, request.Web, "main.js"},
		{"index fallback", Manifest{}, request.IOS, "index.js"},
		{"missing main falls back to index", Manifest{Main: "gone.js"}, request.IOS, "index.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveEntry(dir, "", tt.platform, &tt.m)
			if !ok || got != filepath.Join(dir, tt.want) {
				t.Errorf("ResolveEntry() = %s, %v; want %s", got, ok, tt.want)
			}
		})
	}
}

func TestResolveEntryDeep(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"fp/map.js":         "",
		"lib/util/index.js": "",
		"index.js":          "",
	})
	m := &Manifest{}

	if got, ok := ResolveEntry(dir, "fp/map", request.IOS, m); !ok || got != filepath.Join(dir, "fp", "map.js") {
		t.Errorf("deep file = %s, %v", got, ok)
	}
	if got, ok := ResolveEntry(dir, "lib/util", request.IOS, m); !ok || got != filepath.Join(dir, "lib", "util", "index.js") {
		t.Errorf("deep directory = %s, %v", got, ok)
	}
	if _, ok := ResolveEntry(dir, "missing", request.IOS, m); ok {
		t.Error("missing deep path should not resolve")
	}
	if _, ok := ResolveEntry(dir, "../outside", request.IOS, m); ok {
		t.Error("deep path escaping the package should not resolve")
	}
}

func TestResolveEntryNativeOnly(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.ios.js":     "",
		"index.android.js": "",
	})
	m := &Manifest{}
	if _, ok := ResolveEntry(dir, "", request.Web, m); ok {
		t.Error("web should not resolve a native-only package")
	}
	if _, ok := ResolveEntry(dir, "", request.IOS, m); !ok {
		t.Error("ios should resolve")
	}
}

func TestResolveAssetVariants(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"img/icon@2x.ios.png": "",
		"img/icon@3x.png":     "",
		"img/icon.png":        "",
		"img/logo.png":        "",
	})
	m := &Manifest{}

	tests := []struct {
		deep     string
		platform request.Platform
		want     string
	}{
		{"img/icon.png", request.IOS, "img/icon@2x.ios.png"},
		{"img/icon.png", request.Android, "img/icon@3x.png"},
		{"img/logo.png", request.Web, "img/logo.png"},
	}
	for _, tt := range tests {
		got, ok := ResolveEntry(dir, tt.deep, tt.platform, m)
		if !ok || got != filepath.Join(dir, filepath.FromSlash(tt.want)) {
			t.Errorf("ResolveEntry(%s, %s) = %s, %v; want %s", tt.deep, tt.platform, got, ok, tt.want)
		}
	}
}

func TestTypesOnly(t *testing.T) {
	declared := writeTree(t, map[string]string{"index.d.ts": ""})
	if !TypesOnly(declared, "", &Manifest{}) {
		t.Error("index.d.ts package should be types-only")
	}
	if !TypesOnly(t.TempDir(), "", &Manifest{Types: "dist/index.d.ts"}) {
		t.Error("types field should mark the package types-only")
	}
	deep := writeTree(t, map[string]string{"lib/api.d.ts": ""})
	if !TypesOnly(deep, "lib/api", &Manifest{}) {
		t.Error("deep declaration file should be types-only")
	}
	if TypesOnly(t.TempDir(), "", &Manifest{}) {
		t.Error("empty package is not types-only")
	}
}

func TestResolveExtensionsOrder(t *testing.T) {
	ios := resolveExtensions(request.IOS)
	if ios[0] != ".ios.tsx" || ios[len(SourceExtensions)] != ".native.tsx" || ios[len(ios)-1] != ".json" {
		t.Errorf("ios extensions = %v", ios)
	}
	web := resolveExtensions(request.Web)
	if web[0] != ".web.tsx" || len(web) != 2*len(SourceExtensions) {
		t.Errorf("web extensions = %v", web)
	}
}
