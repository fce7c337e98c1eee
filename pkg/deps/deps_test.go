package deps

import (
	"encoding/json"
	"testing"

	"github.com/matzehuels/snackager/pkg/errors"
	"github.com/matzehuels/snackager/pkg/externals"
)

func testMetadata() *PackageMetadata {
	versions := map[string]*PackageVersion{}
	for _, v := range []string{"1.1.0", "1.2.0", "1.2.3", "2.0.0", "2.0.1"} {
		versions[v] = &PackageVersion{Name: "pkg", Version: v}
	}
	return &PackageMetadata{
		Name:     "pkg",
		Versions: versions,
		DistTags: map[string]string{"latest": "1.2.3", "canary": "2.0.1", "broken": "not-a-version"},
	}
}

func TestResolveVersion(t *testing.T) {
	meta := testMetadata()

	tests := []struct {
		tag      string
		want     string
		isLatest bool
		code     errors.Code
	}{
		{tag: "latest", want: "1.2.3", isLatest: true},
		{tag: "canary", want: "2.0.1"},
		{tag: "1.2.0", want: "1.2.0"},
		{tag: "1.2.3", want: "1.2.3", isLatest: true},
		{tag: "^1.0.0", want: "1.2.3", isLatest: true},
		{tag: "~1.1.0", want: "1.1.0"},
		{tag: ">=2.0.0", want: "2.0.1"},
		{tag: "1.x", want: "1.2.3", isLatest: true},
		{tag: "*", want: "2.0.1"},
		{tag: "nightly", code: errors.ErrCodeVersionNotFound},
		{tag: "^3.0.0", code: errors.ErrCodeVersionNotFound},
		{tag: "broken", code: errors.ErrCodeInvalidVersion},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, isLatest, err := ResolveVersion(meta, tt.tag)
			if tt.code != "" {
				if !errors.Is(err, tt.code) {
					t.Fatalf("ResolveVersion(%q) error = %v, want code %v", tt.tag, err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveVersion(%q) error: %v", tt.tag, err)
			}
			if got != tt.want || isLatest != tt.isLatest {
				t.Errorf("ResolveVersion(%q) = %q, %v; want %q, %v", tt.tag, got, isLatest, tt.want, tt.isLatest)
			}
		})
	}
}

func TestResolveVersionWildcardFallback(t *testing.T) {
	meta := &PackageMetadata{
		Name: "pkg",
		Versions: map[string]*PackageVersion{
			"2.0.0-beta.1": {Version: "2.0.0-beta.1"},
		},
		DistTags: map[string]string{"latest": "1.2.3"},
	}

	got, isLatest, err := ResolveVersion(meta, "*")
	if err != nil {
		t.Fatalf("ResolveVersion(*) error: %v", err)
	}
	if got != "1.2.3" || !isLatest {
		t.Errorf("ResolveVersion(*) = %q, %v; want 1.2.3, true", got, isLatest)
	}
}

func TestResolveTaggedButUnpublished(t *testing.T) {
	meta := testMetadata()
	meta.DistTags["next"] = "3.0.0"

	v, _, err := ResolveVersion(meta, "next")
	if err != nil || v != "3.0.0" {
		t.Fatalf("ResolveVersion(next) = %q, %v; want 3.0.0", v, err)
	}
	if _, err := Resolve(meta, "", "next", externals.Default()); !errors.Is(err, errors.ErrCodeVersionNotFound) {
		t.Errorf("Resolve(next) error = %v, want VERSION_NOT_FOUND", err)
	}
}

func TestResolveDependencies(t *testing.T) {
	policy := externals.Default()

	pv := &PackageVersion{
		Name:    "lib",
		Version: "1.0.0",
		PeerDependencies: map[string]string{
			"react":                     "*",
			"react-native":              ">=0.60",
			"react-native-vector-icons": "^9.0.0",
			"react-native-windows":      "*",
			"@types/react":              "*",
			"react-native-svg":          ">=12.1.0",
			"some-lib":                  "^1.0.0 || ^2.0.0",
		},
		Dependencies: map[string]string{
			"lodash":               "^4.17.0",
			"expo-linear-gradient": "~12.0.0",
			"react-native-svg":     "13.0.0",
			"react-native-windows": "0.70.0",
		},
	}

	got := ResolveDependencies(pv, policy)

	want := map[string]*string{
		"@expo/vector-icons":   nil,
		"react-native-svg":     Pinned("^12.1.0"),
		"some-lib":             Pinned("^1.0.0 || ^2.0.0"),
		"expo-linear-gradient": Pinned("~12.0.0"),
	}
	if len(got) != len(want) {
		t.Fatalf("ResolveDependencies() = %v, want %d entries", got, len(want))
	}
	for name, spec := range want {
		g, ok := got[name]
		if !ok {
			t.Errorf("missing %q", name)
			continue
		}
		if (spec == nil) != (g == nil) || (spec != nil && *spec != *g) {
			t.Errorf("%q = %v, want %v", name, deref(g), deref(spec))
		}
	}
	for _, name := range []string{"react", "react-native", "react-native-windows", "lodash", "react-native-vector-icons"} {
		if _, ok := got[name]; ok {
			t.Errorf("%q must not be in the dependency set", name)
		}
	}
}

func TestResolveDependenciesDeterministic(t *testing.T) {
	pv := &PackageVersion{
		PeerDependencies: map[string]string{"react-native-screens": ">=3.0.0", "a": "^1"},
		Dependencies:     map[string]string{"expo-blur": "^12.0.0"},
	}
	first, _ := json.Marshal(ResolveDependencies(pv, externals.Default()))
	for range 10 {
		again, _ := json.Marshal(ResolveDependencies(pv, externals.Default()))
		if string(again) != string(first) {
			t.Fatalf("non-deterministic result: %s vs %s", again, first)
		}
	}
}

func TestDependencySetJSON(t *testing.T) {
	set := DependencySet{"@expo/vector-icons": nil, "react-native-svg": Pinned("^13.0.0")}
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"@expo/vector-icons":null,"react-native-svg":"^13.0.0"}` {
		t.Errorf("json = %s", data)
	}
}

func TestSimplifyRange(t *testing.T) {
	tests := []struct{ in, want string }{
		{">=16.8.0", "^16.8.0"},
		{">16.8", "^16.8.0"},
		{">=1.0.0 <2.0.0", ">=1.0.0 <2.0.0"},
		{">=1.0.0 || >=2.3.0", "^2.3.0"},
		{"^1.0.0", "^1.0.0"},
		{"~2.1.0", "~2.1.0"},
		{"*", "*"},
		{"", ""},
		{"1.0.0 - 2.0.0", "1.0.0 - 2.0.0"},
		{"github:user/repo", "github:user/repo"},
	}
	for _, tt := range tests {
		if got := SimplifyRange(tt.in); got != tt.want {
			t.Errorf("SimplifyRange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name, deep, version, want string
	}{
		{"lodash", "", "4.17.21", "lodash@4.17.21"},
		{"lodash", "fp/map", "4.17.21", "lodash~fp~map@4.17.21"},
		{"@expo/vector-icons", "", "13.0.0", "@expo~vector-icons@13.0.0"},
		{"@scope/pkg", "lib", "1.0.0", "@scope~pkg~lib@1.0.0"},
	}
	for _, tt := range tests {
		if got := Handle(tt.name, tt.deep, tt.version); got != tt.want {
			t.Errorf("Handle(%q, %q, %q) = %q, want %q", tt.name, tt.deep, tt.version, got, tt.want)
		}
	}
	if got := FloatingHandle("lodash", "fp"); got != "lodash~fp@latest" {
		t.Errorf("FloatingHandle() = %q", got)
	}
}

func TestResolve(t *testing.T) {
	meta := testMetadata()
	res, err := Resolve(meta, "lib/x", "latest", externals.Default())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Handle != "pkg~lib~x@1.2.3" || res.FloatingHandle != "pkg~lib~x@latest" {
		t.Errorf("handles = %q, %q", res.Handle, res.FloatingHandle)
	}
	if res.QualifiedName() != "pkg/lib/x" {
		t.Errorf("QualifiedName() = %q", res.QualifiedName())
	}

	res, err = Resolve(meta, "", "canary", externals.Default())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.FloatingHandle != "" {
		t.Errorf("non-latest resolution should not have a floating handle: %q", res.FloatingHandle)
	}
}

func TestVersionHint(t *testing.T) {
	pv := &PackageVersion{
		Dependencies:     map[string]string{"a": "^1.0.0"},
		PeerDependencies: map[string]string{"a": "^2.0.0", "b": "^3.0.0"},
		DevDependencies:  map[string]string{"c": "^4.0.0"},
	}
	for name, want := range map[string]string{"a": "^1.0.0", "b": "^3.0.0", "c": "^4.0.0"} {
		if got, ok := pv.VersionHint(name); !ok || got != want {
			t.Errorf("VersionHint(%q) = %q, %v; want %q", name, got, ok, want)
		}
	}
	if _, ok := pv.VersionHint("d"); ok {
		t.Error("VersionHint(d) should not be found")
	}
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
