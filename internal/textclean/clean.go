// Package textclean normalizes student answer text before it is shown to the
// grading model. It handles both OCR output and typed input.
package textclean

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	disallowed    = regexp.MustCompile(`[^a-zA-Z0-9.,;:?!()\-'" ]+`)
	markupPolicy  = bluemonday.StrictPolicy()
)

// Options controls the optional, riskier rewrite rules.
type Options struct {
	// RewriteLookalikes enables digit/letter look-alike substitution
	// ("0" -> "o", "1" -> "l"). It improves OCR output for prose but
	// corrupts numeric or alphanumeric content, so it is off by default.
	RewriteLookalikes bool
}

// artifact substitutions that are safe for any content.
var safeReplacer = strings.NewReplacer(
	"—", "-", // em dash
	"–", "-", // en dash
	"|", "l",
)

var lookalikeReplacer = strings.NewReplacer(
	"0", "o",
	"1", "l",
)

// Clean normalizes whitespace, fixes common extraction artifacts and strips
// characters outside a conservative allow-list. Clean is idempotent.
func Clean(text string) string {
	return CleanWithOptions(text, Options{})
}

// CleanWithOptions behaves like Clean with explicit rewrite options.
func CleanWithOptions(text string, opts Options) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	text = safeReplacer.Replace(text)
	if opts.RewriteLookalikes {
		text = lookalikeReplacer.Replace(text)
	}

	text = disallowed.ReplaceAllString(text, "")

	// Stripping a character can leave two adjacent spaces behind; collapse
	// again so a second Clean pass is a no-op.
	text = whitespaceRun.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// StripMarkup removes HTML tags from typed submissions. The output still
// passes through Clean before reaching the grading prompt.
func StripMarkup(text string) string {
	return markupPolicy.Sanitize(text)
}
