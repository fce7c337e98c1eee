package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/matzehuels/snackager/pkg/externals"
	"github.com/matzehuels/snackager/pkg/request"
)

// Output file names inside a platform artifact.
const (
	BundleFile    = "bundle.js"
	SourceMapFile = "bundle.js.map"
	AssetDir      = "assets"
)

// Files maps output file names (relative, slash-separated) to contents.
type Files map[string][]byte

// Target describes one platform build.
type Target struct {
	Platform request.Platform
	Entry    string                // Absolute entry point path
	Dir      string                // Package directory
	External func(pkg string) bool // Reports whether a package must stay out of the bundle
}

// Toolchain compiles one platform bundle.
type Toolchain interface {
	Build(ctx context.Context, t Target) (Files, []string, error)
}

// ToolchainError carries the diagnostics of a failed build.
type ToolchainError struct {
	Platform request.Platform
	Messages []string
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("%s build failed: %s", e.Platform, strings.Join(e.Messages, "; "))
}

// ImportRewrites replaces specifiers that upstream packages import but that
// no longer exist in the host runtime.
var ImportRewrites = map[string]string{
	"react-native/Libraries/Image/AssetRegistry": "@react-native/assets-registry/registry",
	"react-native-web/dist/index":                "react-native-web",
}

// Esbuild is the production Toolchain.
type Esbuild struct {
	Rewrites map[string]string // Defaults to ImportRewrites
}

// Build bundles t.Entry into a minified CommonJS script with an external
// source map. The returned strings are the external imports left in the
// bundle, sorted.
func (e *Esbuild) Build(ctx context.Context, t Target) (Files, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	rewrites := e.Rewrites
	if rewrites == nil {
		rewrites = ImportRewrites
	}
	outDir := filepath.Join(t.Dir, ".snackager-out", string(t.Platform))

	result := api.Build(api.BuildOptions{
		EntryPoints:       []string{t.Entry},
		AbsWorkingDir:     t.Dir,
		Outfile:           filepath.Join(outDir, BundleFile),
		Bundle:            true,
		Write:             false,
		Metafile:          true,
		Format:            api.FormatCommonJS,
		Platform:          api.PlatformNeutral,
		Target:            api.ES2019,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		Sourcemap:         api.SourceMapExternal,
		LegalComments:     api.LegalCommentsNone,
		ResolveExtensions: resolveExtensions(t.Platform),
		MainFields:        mainFields(t.Platform),
		Conditions:        conditions(t.Platform),
		Loader:            loaders(),
		AssetNames:        AssetDir + "/[name]-[hash]",
		Define: map[string]string{
			"process.env.NODE_ENV": `"production"`,
			"__DEV__":              "false",
		},
		Plugins:  []api.Plugin{resolverPlugin(t.External, rewrites)},
		LogLevel: api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		return nil, nil, &ToolchainError{Platform: t.Platform, Messages: formatMessages(result.Errors)}
	}

	files := make(Files, len(result.OutputFiles))
	for _, of := range result.OutputFiles {
		rel, err := filepath.Rel(outDir, of.Path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, nil, fmt.Errorf("unexpected output file %s", of.Path)
		}
		files[filepath.ToSlash(rel)] = of.Contents
	}
	return files, externalImports(result.Metafile), nil
}

func mainFields(p request.Platform) []string {
	if p == request.Web {
		return []string{"browser", "module", "main"}
	}
	return []string{"react-native", "browser", "module", "main"}
}

func conditions(p request.Platform) []string {
	if p == request.Web {
		return []string{"browser", "import", "require", "default"}
	}
	return []string{"react-native", "import", "require", "default"}
}

func loaders() map[string]api.Loader {
	l := map[string]api.Loader{".js": api.LoaderJSX}
	for _, ext := range AssetExtensions {
		l[ext] = api.LoaderFile
	}
	return l
}

// resolverPlugin applies import rewrites and marks host-provided packages as
// external. Only bare specifiers are considered.
func resolverPlugin(external func(string) bool, rewrites map[string]string) api.Plugin {
	keys := make([]string, 0, len(rewrites))
	for k := range rewrites {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	slices.Sort(keys)
	rewriteFilter := `^(?:` + strings.Join(keys, "|") + `)$`

	return api.Plugin{
		Name: "snackager-resolver",
		Setup: func(build api.PluginBuild) {
			if len(keys) > 0 {
				build.OnResolve(api.OnResolveOptions{Filter: rewriteFilter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					target := rewrites[args.Path]
					if external(externals.PackageName(target)) {
						return api.OnResolveResult{Path: target, External: true}, nil
					}
					r := build.Resolve(target, api.ResolveOptions{ResolveDir: args.ResolveDir, Kind: args.Kind})
					if len(r.Errors) > 0 {
						return api.OnResolveResult{Errors: []api.Message{{Text: fmt.Sprintf("Could not resolve %q", target)}}}, nil
					}
					return api.OnResolveResult{Path: r.Path, External: r.External}, nil
				})
			}
			build.OnResolve(api.OnResolveOptions{Filter: `^[^./]`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if name := externals.PackageName(args.Path); name != "" && external(name) {
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				}
				return api.OnResolveResult{}, nil
			})
		},
	}
}

func formatMessages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			out = append(out, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
		} else {
			out = append(out, m.Text)
		}
	}
	return out
}

// metafile is the subset of the esbuild metafile needed to list the
// external imports of a bundle.
type metafile struct {
	Outputs map[string]struct {
		Imports []struct {
			Path     string `json:"path"`
			External bool   `json:"external"`
		} `json:"imports"`
	} `json:"outputs"`
}

func externalImports(raw string) []string {
	var mf metafile
	if raw == "" || json.Unmarshal([]byte(raw), &mf) != nil {
		return nil
	}
	var out []string
	for _, o := range mf.Outputs {
		for _, imp := range o.Imports {
			if imp.External && !slices.Contains(out, imp.Path) {
				out = append(out, imp.Path)
			}
		}
	}
	slices.Sort(out)
	return out
}

var _ Toolchain = (*Esbuild)(nil)
