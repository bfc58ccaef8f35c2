// Package prompt builds the fixed parts of a translation request: the system
// prompt, optionally extended with a glossary, and the task directive.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/valpere/linetran/internal/output"
)

//go:embed prompts/*.md
var defaults embed.FS

// Default returns the built-in system prompt for mode.
func Default(mode output.Mode) (string, error) {
	data, err := defaults.ReadFile("prompts/" + string(mode) + ".md")
	if err != nil {
		return "", fmt.Errorf("no default system prompt for mode %q", mode)
	}
	return string(data), nil
}

// LoadSystem reads the system prompt from path, or returns the built-in one
// for mode when path is empty.
func LoadSystem(path string, mode output.Mode) (string, error) {
	if path == "" {
		return Default(mode)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("system prompt %s is empty", path)
	}
	return string(data), nil
}

// LanguageName returns the English name of tag, e.g. "Japanese".
func LanguageName(tag language.Tag) string {
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// Directive is the task statement that opens every request.
func Directive(source, target language.Tag) string {
	return strings.TrimSpace(heredoc.Docf(`
		**task**
		According to the given contextual information, translate the %s document into %s.
	`, LanguageName(source), LanguageName(target)))
}

// Term is one glossary entry.
type Term struct {
	Source string
	Target string
}

// WithGlossary appends a terminology section to system. Terms are listed in
// the given order; an empty list leaves system untouched.
func WithGlossary(system string, terms []Term) string {
	if len(terms) == 0 {
		return system
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(system, "\n"))
	b.WriteString("\n\n## Glossary\n\nAlways translate these terms as listed:\n\n")
	for _, t := range terms {
		fmt.Fprintf(&b, "- %s → %s\n", t.Source, t.Target)
	}
	return b.String()
}
