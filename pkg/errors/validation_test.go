package errors

import (
	"strings"
	"testing"
)

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "lodash", false},
		{"scoped", "@expo/vector-icons", false},
		{"dots and dashes", "lodash.debounce", false},
		{"tilde", "my~pkg", false},
		{"empty", "", true},
		{"uppercase", "React", true},
		{"leading dot", ".hidden", true},
		{"leading underscore", "_private", true},
		{"scoped leading dot", "@scope/.x", true},
		{"scope without name", "@scope", true},
		{"space", "my pkg", true},
		{"traversal", "../etc", true},
		{"backslash", "a\\b", true},
		{"too long", strings.Repeat("a", 215), true},
		{"special chars", "pkg!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidRequest) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidRequest)
			}
		})
	}
}

func TestValidateSubpath(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"", false},
		{"lib/utils", false},
		{"assets/icon.png", false},
		{"/abs", true},
		{"a/../b", true},
		{"a//b", true},
		{"./a", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if err := ValidateSubpath(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("ValidateSubpath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
