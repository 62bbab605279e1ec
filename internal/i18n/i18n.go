// Package i18n provides translated user-facing strings.
package i18n

import (
	"embed"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Locale identifies a supported UI language.
type Locale string

const (
	English Locale = "en"
	Russian Locale = "ru"
)

// DefaultLocale is used when no preference is known.
const DefaultLocale = English

var supported = []Locale{English, Russian}

// Catalog holds the translations of every supported locale.
type Catalog struct {
	messages map[Locale]map[string]any
	matcher  language.Matcher
}

// Load reads the embedded catalogs.
func Load() (*Catalog, error) {
	c := &Catalog{messages: make(map[Locale]map[string]any, len(supported))}

	tags := make([]language.Tag, 0, len(supported))
	for _, l := range supported {
		data, err := localeFS.ReadFile("locales/" + string(l) + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", l, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", l, err)
		}
		c.messages[l] = tree
		tags = append(tags, language.Make(string(l)))
	}
	c.matcher = language.NewMatcher(tags)

	return c, nil
}

// MustLoad is like Load but panics on error. The catalogs are embedded, so an
// error here is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Supported returns the supported locales.
func (c *Catalog) Supported() []Locale {
	return append([]Locale(nil), supported...)
}

// Parse returns the supported locale named s.
func Parse(s string) (Locale, bool) {
	for _, l := range supported {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// Match picks the best supported locale for a language preference such as
// an Accept-Language header or a LANG value ("ru_RU.UTF-8").
func (c *Catalog) Match(preference string) Locale {
	preference = strings.TrimSpace(preference)
	if preference == "" {
		return DefaultLocale
	}
	if i := strings.IndexByte(preference, '.'); i >= 0 {
		preference = preference[:i]
	}
	preference = strings.ReplaceAll(preference, "_", "-")

	tags, _, err := language.ParseAcceptLanguage(preference)
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}
	_, index, confidence := c.matcher.Match(tags...)
	if confidence == language.No {
		return DefaultLocale
	}
	return supported[index]
}

// T returns the translation of a dot-separated key. Missing keys fall back
// to English, then to the key itself. Each {name} in the text is replaced by
// params["name"].
func (c *Catalog) T(locale Locale, key string, params map[string]any) string {
	text, ok := lookup(c.messages[locale], key)
	if !ok && locale != DefaultLocale {
		text, ok = lookup(c.messages[DefaultLocale], key)
	}
	if !ok {
		return key
	}

	for name, v := range params {
		text = strings.ReplaceAll(text, "{"+name+"}", fmt.Sprint(v))
	}
	return text
}

func lookup(tree map[string]any, key string) (string, bool) {
	var node any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return "", false
		}
		node, ok = m[part]
		if !ok {
			return "", false
		}
	}
	s, ok := node.(string)
	return s, ok
}
