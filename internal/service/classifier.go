package service

import (
	"strings"
	"unicode"

	"github.com/noah-isme/mini-event-api/internal/models"
)

var defaultWorkKeywords = []string{
	"meeting", "meetings", "standup", "sync", "project", "deadline", "client", "clients",
	"presentation", "report", "office", "interview", "conference", "review", "sprint",
	"demo", "workshop", "call", "team", "planning", "onboarding", "invoice", "budget",
	"webinar", "retro", "retrospective", "release", "deploy", "manager", "boss", "work",
}

var defaultPersonalKeywords = []string{
	"birthday", "family", "dinner", "lunch", "gym", "workout", "doctor", "dentist",
	"vacation", "holiday", "party", "friend", "friends", "anniversary", "shopping",
	"wedding", "movie", "date", "mom", "dad", "kids", "school", "yoga", "run",
	"haircut", "trip", "concert", "picnic", "home", "personal",
}

// Classifier assigns a category from the words of an event's title and notes.
type Classifier struct {
	work     map[string]struct{}
	personal map[string]struct{}
}

// NewClassifier builds a classifier with the default keyword sets plus extras.
func NewClassifier(extraWork, extraPersonal []string) *Classifier {
	return &Classifier{
		work:     keywordSet(defaultWorkKeywords, extraWork),
		personal: keywordSet(defaultPersonalKeywords, extraPersonal),
	}
}

func keywordSet(lists ...[]string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, list := range lists {
		for _, word := range list {
			word = strings.ToLower(strings.TrimSpace(word))
			if word != "" {
				set[word] = struct{}{}
			}
		}
	}
	return set
}

// Classify scores title matches double. Ties and no matches yield Other.
func (c *Classifier) Classify(title, notes string) models.Category {
	work, personal := 0, 0
	score := func(text string, weight int) {
		for _, token := range tokenize(text) {
			if _, ok := c.work[token]; ok {
				work += weight
			}
			if _, ok := c.personal[token]; ok {
				personal += weight
			}
		}
	}
	score(title, 2)
	score(notes, 1)

	switch {
	case work > personal:
		return models.CategoryWork
	case personal > work:
		return models.CategoryPersonal
	default:
		return models.CategoryOther
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
