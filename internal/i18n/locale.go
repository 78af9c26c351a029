// Package i18n holds the bilingual vocabulary and display formatting used by
// the showroom catalog. Chinese is the primary locale, English the secondary.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Locale identifies a display language
type Locale string

const (
	LocaleZH Locale = "zh"
	LocaleEN Locale = "en"
)

// ParseLocale normalizes a language tag to a supported locale.
// Anything that is not English falls back to the primary locale.
func ParseLocale(s string) Locale {
	s = strings.TrimSpace(s)
	if s == "" {
		return LocaleZH
	}

	tag, err := language.Parse(s)
	if err != nil {
		return LocaleZH
	}

	base, _ := tag.Base()
	if base.String() == "en" {
		return LocaleEN
	}
	return LocaleZH
}

// IsSecondary reports whether l is the English locale
func (l Locale) IsSecondary() bool {
	return l == LocaleEN
}
