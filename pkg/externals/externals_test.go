package externals

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestPackageName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"lodash", "lodash"},
		{"lodash/debounce", "lodash"},
		{"@expo/vector-icons", "@expo/vector-icons"},
		{"@expo/vector-icons/build/Ionicons", "@expo/vector-icons"},
		{"@scope", ""},
		{"./local", ""},
		{"../up", ""},
		{"/abs/path", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PackageName(tt.in); got != tt.want {
			t.Errorf("PackageName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := Default()

	tests := []struct {
		spec     string
		core     bool
		external bool
	}{
		{"react", true, true},
		{"react-native", true, true},
		{"react-native/Libraries/Image/AssetRegistry", true, true},
		{"expo", true, true},
		{"expo-constants", true, true},
		{"expo-linear-gradient", false, true},
		{"@expo/vector-icons/Ionicons", false, true},
		{"@react-native-community/slider", false, true},
		{"react-native-svg", false, true},
		{"lodash", false, false},
		{"react-native-windows", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			if got := p.IsCore(tt.spec); got != tt.core {
				t.Errorf("IsCore(%q) = %v, want %v", tt.spec, got, tt.core)
			}
			if got := p.IsExternal(tt.spec); got != tt.external {
				t.Errorf("IsExternal(%q) = %v, want %v", tt.spec, got, tt.external)
			}
		})
	}

	if !p.IsIgnored("react-native-windows") || !p.IsIgnored("@types/react") {
		t.Error("windows alias and type packages should be ignored")
	}
	if target, ok := p.Alias("react-native-vector-icons"); !ok || target != "@expo/vector-icons" {
		t.Errorf("Alias() = %q, %v", target, ok)
	}
}

func TestCoreNeverPackage(t *testing.T) {
	p := Default()
	for _, name := range DefaultDefinition.Core {
		if p.IsPackage(name) {
			t.Errorf("core module %q must not be a package external", name)
		}
	}
}

func TestNewRejectsOverlap(t *testing.T) {
	_, err := New(Definition{Core: []string{"react"}, Packages: []string{"react"}})
	if err == nil {
		t.Fatal("expected error for overlapping core and package externals")
	}
	if _, err := New(Definition{Families: []string{"("}}); err == nil {
		t.Fatal("expected error for invalid family pattern")
	}
}

func TestMinimalPolicy(t *testing.T) {
	p := MustNew(Definition{Version: "test", Core: []string{"react"}})
	if p.Version() != "test" {
		t.Errorf("Version() = %q", p.Version())
	}
	if p.IsExternal("react-native") {
		t.Error("minimal policy should not know react-native")
	}
	if !slices.Equal(p.Names(), []string{"react"}) {
		t.Errorf("Names() = %v", p.Names())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "externals.toml")
	content := `
version = "custom"
core = ["react"]
packages = ["react-native-svg"]
families = ["^expo-"]
ignored = ["react-native-windows"]

[aliases]
react-native-vector-icons = "@expo/vector-icons"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if p.Version() != "custom" {
		t.Errorf("Version() = %q", p.Version())
	}
	if !p.IsExternal("expo-haptics") || !p.IsExternal("react-native-svg") {
		t.Error("loaded policy should externalize families and packages")
	}
	if _, ok := p.Alias("react-native-vector-icons"); !ok {
		t.Error("loaded policy should carry aliases")
	}
}
