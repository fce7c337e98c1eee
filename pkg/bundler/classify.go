package bundler

import (
	stderrors "errors"
	"regexp"
	"slices"
)

// Diagnosis lists the import specifiers a failed build could not resolve.
type Diagnosis struct {
	Unresolved []string
}

// Classifier decides whether a toolchain failure is recoverable. It returns
// ok=false for fatal failures, which the builder propagates unchanged.
type Classifier interface {
	Classify(err error) (d Diagnosis, ok bool)
}

// PatternClassifier recognizes "module not found" diagnostics in free-text
// toolchain messages. Each pattern captures the specifier in group 1.
type PatternClassifier struct {
	Patterns []*regexp.Regexp
}

// DefaultPatterns match the missing-module diagnostics of esbuild, Node.js
// and Metro.
var DefaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Could not resolve "([^"]+)"`),
	regexp.MustCompile(`Cannot find module '([^']+)'`),
	regexp.MustCompile(`Unable to resolve module ([^\s]+)`),
	regexp.MustCompile(`Module not found: Error: Can't resolve '([^']+)'`),
}

// NewPatternClassifier returns a classifier using DefaultPatterns.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{Patterns: DefaultPatterns}
}

// Classify extracts unresolved specifiers from the messages of err.
func (c *PatternClassifier) Classify(err error) (Diagnosis, bool) {
	var d Diagnosis
	for _, msg := range messages(err) {
		for _, re := range c.Patterns {
			for _, m := range re.FindAllStringSubmatch(msg, -1) {
				if !slices.Contains(d.Unresolved, m[1]) {
					d.Unresolved = append(d.Unresolved, m[1])
				}
			}
		}
	}
	return d, len(d.Unresolved) > 0
}

// messages returns the individual diagnostics of a toolchain error, or the
// error text for any other error.
func messages(err error) []string {
	if err == nil {
		return nil
	}
	var te *ToolchainError
	if stderrors.As(err, &te) && len(te.Messages) > 0 {
		return te.Messages
	}
	return []string{err.Error()}
}

var _ Classifier = (*PatternClassifier)(nil)
