package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// maxPackageNameLength is the registry's limit on package name length.
const maxPackageNameLength = 214

// npmPackageNameRegex matches valid npm package names, scoped or not.
var npmPackageNameRegex = regexp.MustCompile(`^(@[a-z0-9-~][a-z0-9-._~]*/)?[a-z0-9-~][a-z0-9-._~]*$`)

// ValidatePackageName validates an npm package name against the registry's
// legality rules.
//
// The rules are:
//   - No empty names, maximum length of 214 characters
//   - No control characters, whitespace or path traversal sequences
//   - Lowercase only
//   - The name (or the scope and the name) may not start with "." or "_"
//   - Only URL-safe characters
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidRequest, "package name cannot be empty")
	}
	if len(name) > maxPackageNameLength {
		return New(ErrCodeInvalidRequest, "package name too long (max %d characters)", maxPackageNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidRequest, "package name contains invalid characters: %q", name)
		}
	}

	for _, pattern := range []string{"..", "//", "\\"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidRequest, "package name contains invalid characters: %q", pattern)
		}
	}

	if strings.ToLower(name) != name {
		return New(ErrCodeInvalidRequest, "package names must be lowercase: %q", name)
	}

	bare := name
	if strings.HasPrefix(name, "@") {
		_, after, ok := strings.Cut(name, "/")
		if !ok {
			return New(ErrCodeInvalidRequest, "scoped package name is missing a name: %q", name)
		}
		bare = after
	}
	if strings.HasPrefix(bare, ".") || strings.HasPrefix(bare, "_") {
		return New(ErrCodeInvalidRequest, "package name cannot start with a period or underscore: %q", name)
	}

	if !npmPackageNameRegex.MatchString(name) {
		return New(ErrCodeInvalidRequest, "invalid package name: %q", name)
	}
	if url.PathEscape(bare) != bare {
		return New(ErrCodeInvalidRequest, "package name contains non URL-safe characters: %q", name)
	}
	return nil
}

// ValidateSubpath validates a deep-import path within a package.
// It prevents path traversal out of the package directory.
func ValidateSubpath(path string) error {
	if path == "" {
		return nil
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidRequest, "import path contains invalid characters")
		}
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return New(ErrCodeInvalidRequest, "import path must be relative: %q", path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return New(ErrCodeInvalidRequest, "import path contains invalid segment: %q", path)
		}
	}
	return nil
}
