package i18n

import (
	"github.com/cloudfoundry/jibber_jabber"
	"github.com/imdario/mergo"
	"github.com/sirupsen/logrus"
)

// NewTranslationSet builds the localised string set for the user's
// language. Anything a language doesn't translate falls back to english
// via the merge.
func NewTranslationSet(log *logrus.Entry) *TranslationSet {
	language := detectLanguage(jibber_jabber.DetectLanguage)
	log.Info("language: " + language)

	baseSet := englishSet()

	for languageCode, translationSet := range getTranslationSets() {
		if languageCode == language {
			_ = mergo.Merge(&baseSet, translationSet, mergo.WithOverride)
		}
	}
	return &baseSet
}

// getTranslationSets returns all the translation sets keyed by language code
func getTranslationSets() map[string]TranslationSet {
	return map[string]TranslationSet{
		"nl": dutchSet(),
		"en": englishSet(),
	}
}

// detectLanguage extracts user language from environment
func detectLanguage(langDetector func() (string, error)) string {
	if userLang, err := langDetector(); err == nil {
		return userLang
	}

	return "C"
}
