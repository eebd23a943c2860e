package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

// MessageNotFound is the last-resort text when even the fallback key is missing.
const MessageNotFound = "message not found"

const notFoundKey = "message_not_found"

// Localizer resolves message keys into formatted text.
type Localizer struct {
	bundle      *i18n.Bundle
	defaultLang string
}

// New loads the bundled locales with defaultLang as the fallback language.
func New(defaultLang string) (*Localizer, error) {
	sub, err := fs.Sub(locales, "locales")
	if err != nil {
		return nil, err
	}
	return NewFromFS(sub, defaultLang)
}

// NewFromFS loads every *.yaml file at the root of fsys; file names are language tags.
func NewFromFS(fsys fs.FS, defaultLang string) (*Localizer, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("parse default language %q: %w", defaultLang, err)
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	for _, file := range files {
		if _, err := bundle.LoadMessageFileFS(fsys, path.Clean(file)); err != nil {
			return nil, fmt.Errorf("load locale %s: %w", file, err)
		}
	}

	return &Localizer{bundle: bundle, defaultLang: tag.String()}, nil
}

// DefaultLanguage is the language used when the requested one has no translation.
func (l *Localizer) DefaultLanguage() string {
	return l.defaultLang
}

// T translates key into lang, falling back to the default language and then to
// the "message not found" text.
func (l *Localizer) T(lang, key string, params map[string]any) string {
	if msg, ok := l.localize(lang, key, params); ok {
		return msg
	}
	log.Warn().Str("key", key).Str("lang", lang).Msg("Missing translation")
	if msg, ok := l.localize(lang, notFoundKey, nil); ok {
		return msg
	}
	return MessageNotFound
}

func (l *Localizer) localize(lang, key string, params map[string]any) (string, bool) {
	localizer := i18n.NewLocalizer(l.bundle, lang, l.defaultLang)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: params,
	})
	if err != nil && msg == "" {
		return "", false
	}
	return msg, true
}
