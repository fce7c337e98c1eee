package bundler

import (
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/snackager/pkg/request"
)

// SourceExtensions are tried, in order, when resolving a module path.
var SourceExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".cjs", ".json"}

// AssetExtensions are files bundled as emitted assets rather than code.
var AssetExtensions = []string{
	".bmp", ".gif", ".jpeg", ".jpg", ".png", ".webp",
	".otf", ".ttf",
	".aac", ".m4a", ".mp3", ".mp4", ".wav",
	".html", ".pdf",
}

// platformQualifiers returns the file-name qualifiers tried for p in order:
// platform-qualified, "native"-qualified (non-web only), then plain.
func platformQualifiers(p request.Platform) []string {
	if p == request.Web {
		return []string{".web", ""}
	}
	return []string{"." + string(p), ".native", ""}
}

// resolveExtensions returns the extension search order for p, the same order
// entry resolution uses.
func resolveExtensions(p request.Platform) []string {
	var out []string
	for _, q := range platformQualifiers(p) {
		for _, ext := range SourceExtensions {
			out = append(out, q+ext)
		}
	}
	return out
}

func isAsset(ext string) bool { return slices.Contains(AssetExtensions, strings.ToLower(ext)) }

func isSource(ext string) bool { return slices.Contains(SourceExtensions, ext) }

// ResolveEntry returns the absolute path of the entry point for platform.
// A non-empty deep path is resolved relative to the package root; otherwise
// the manifest entry fields are tried, then "index".
func ResolveEntry(pkgDir, deep string, p request.Platform, m *Manifest) (string, bool) {
	var bases []string
	if deep != "" {
		bases = []string{deep}
	} else {
		bases = append(m.entryFields(p == request.Web), "index")
	}
	for _, base := range bases {
		if entry, ok := resolvePath(pkgDir, base, p); ok {
			return entry, true
		}
	}
	return "", false
}

func resolvePath(pkgDir, base string, p request.Platform) (string, bool) {
	full := filepath.Join(pkgDir, filepath.FromSlash(path.Clean(base)))
	if !within(pkgDir, full) {
		return "", false
	}
	ext := filepath.Ext(full)

	if isAsset(ext) {
		return resolveAsset(full, ext, p)
	}

	stem := full
	if isSource(ext) {
		stem = strings.TrimSuffix(full, ext)
	}
	if found, ok := firstFile(stem, p); ok {
		return found, true
	}
	if isFile(full) {
		return full, true
	}
	if isDir(full) {
		return firstFile(filepath.Join(full, "index"), p)
	}
	return "", false
}

func firstFile(stem string, p request.Platform) (string, bool) {
	for _, ext := range resolveExtensions(p) {
		if isFile(stem + ext) {
			return stem + ext, true
		}
	}
	return "", false
}

// assetScales are the density suffixes of asset variants.
var assetScales = []string{"", "@1x", "@2x", "@3x"}

// resolveAsset tries scale- and platform-suffixed variants such as
// "icon@2x.ios.png" before the bare file name.
func resolveAsset(full, ext string, p request.Platform) (string, bool) {
	stem := strings.TrimSuffix(full, ext)
	for _, q := range platformQualifiers(p) {
		for _, scale := range assetScales {
			if q == "" && scale == "" {
				continue
			}
			if candidate := stem + scale + q + ext; isFile(candidate) {
				return candidate, true
			}
		}
	}
	if isFile(full) {
		return full, true
	}
	return "", false
}

// TypesOnly reports whether the package ships only type declarations for the
// requested entry.
func TypesOnly(pkgDir, deep string, m *Manifest) bool {
	if deep == "" && m.typesEntry() != "" {
		return true
	}
	base := deep
	if base == "" {
		base = "index"
	}
	full := filepath.Join(pkgDir, filepath.FromSlash(path.Clean(base)))
	if !within(pkgDir, full) {
		return false
	}
	full = strings.TrimSuffix(strings.TrimSuffix(full, ".ts"), ".d")
	return isFile(full+".d.ts") || isFile(filepath.Join(full, "index.d.ts"))
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
