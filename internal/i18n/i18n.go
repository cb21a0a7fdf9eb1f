// Package i18n serves the fixed bot strings in the farmer's language.
// Catalogs are YAML files compiled into the binary; English is the fallback
// for languages or keys that have no translation yet.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/m3rciful/agrobot/internal/domain"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog resolves message keys per language.
type Catalog struct {
	msgs map[domain.Language]map[string]string
}

// Load parses every embedded locale file. The file stem is the language
// code, so locales/hi.yaml feeds LangHindi.
func Load() (*Catalog, error) {
	entries, err := fs.Glob(localeFS, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list locales: %w", err)
	}
	c := &Catalog{msgs: make(map[domain.Language]map[string]string, len(entries))}
	for _, name := range entries {
		raw, err := localeFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", name, err)
		}
		var msgs map[string]string
		if err := yaml.Unmarshal(raw, &msgs); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", name, err)
		}
		code := strings.TrimSuffix(path.Base(name), ".yaml")
		c.msgs[domain.Language(code)] = msgs
	}
	if _, ok := c.msgs[domain.LangEnglish]; !ok {
		return nil, fmt.Errorf("fallback locale %q missing", domain.LangEnglish)
	}
	return c, nil
}

// T returns the message for key in lang, formatted with args when given.
// Lookup order: requested language, English, then the key itself so a typo
// surfaces in chat instead of an empty bubble.
func (c *Catalog) T(lang domain.Language, key string, args ...any) string {
	msg, ok := c.msgs[lang][key]
	if !ok {
		msg, ok = c.msgs[domain.LangEnglish][key]
	}
	if !ok {
		msg = key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Has reports whether key exists for lang without falling back.
func (c *Catalog) Has(lang domain.Language, key string) bool {
	_, ok := c.msgs[lang][key]
	return ok
}

// StageLabel returns the localized display name of a crop stage.
func (c *Catalog) StageLabel(lang domain.Language, s domain.Stage) string {
	return c.T(lang, "stage_"+string(s))
}

// LangLabel returns the display name of a language, in its own script.
func (c *Catalog) LangLabel(l domain.Language) string {
	return c.T(domain.LangEnglish, "lang_"+string(l))
}
