// Package intent classifies inbound chat text into a fixed set of intents
// and extracts light query parameters for sales questions.
//
// Classification is a pure function evaluated in a fixed priority order and
// the first match wins:
//
//	empty → greeting → help → sales → general
//
// The order is part of the contract: "hi, what sold best today?" is a
// greeting, not a sales query.
package intent

import (
	"regexp"
	"strings"
)

// Intent is the classified purpose of a message.
type Intent string

const (
	Empty    Intent = "empty"
	Greeting Intent = "greeting"
	Help     Intent = "help"
	Sales    Intent = "sales_query"
	General  Intent = "general"
)

// Category filters derived from sales questions.
const (
	CategoryCoffee = "Coffee"
	CategoryPastry = "Pastry"
)

// Result limits.
const (
	DefaultLimit  = 10
	CategoryLimit = 5
)

// Result is the outcome of Classify.
type Result struct {
	Intent   Intent `json:"intent"`
	Text     string `json:"text"`               // normalized (trimmed, lower-cased) text
	Category string `json:"category,omitempty"` // only for Sales
	Limit    int    `json:"limit,omitempty"`    // only for Sales
}

var (
	greetingWords   = []string{"hello", "hi", "hey"}
	greetingPhrases = []string{"good morning", "good afternoon", "good evening"}

	helpWords   = []string{"help", "commands", "options"}
	helpPhrases = []string{"what can you do"}

	salesPatterns = []*regexp.Regexp{
		regexp.MustCompile(`best.selling|top.selling|most.popular`),
		regexp.MustCompile(`sales|revenue|income`),
		regexp.MustCompile(`how.many|quantity|sold`),
		regexp.MustCompile(`what.*drink|beverage|coffee`),
		regexp.MustCompile(`this.week|today|yesterday|last.*days?`),
	}

	coffeeWords = []string{"coffee", "drink", "beverage"}
	pastryWords = []string{"food", "pastry"}
)

// Classify normalizes text and returns its intent. It never fails.
func Classify(text string) Result {
	norm := Normalize(text)
	if norm == "" {
		return Result{Intent: Empty}
	}
	words := tokenize(norm)

	switch {
	case hasWord(words, greetingWords) || hasPhrase(norm, greetingPhrases):
		return Result{Intent: Greeting, Text: norm}
	case hasWord(words, helpWords) || hasPhrase(norm, helpPhrases):
		return Result{Intent: Help, Text: norm}
	case isSales(norm):
		cat, limit := salesParams(norm)
		return Result{Intent: Sales, Text: norm, Category: cat, Limit: limit}
	default:
		return Result{Intent: General, Text: norm}
	}
}

// Normalize trims, lower-cases, and collapses runs of blanks.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func isSales(norm string) bool {
	for _, re := range salesPatterns {
		if re.MatchString(norm) {
			return true
		}
	}
	return false
}

// salesParams derives the category filter and result limit. Coffee wins
// over pastry when both are mentioned.
func salesParams(norm string) (string, int) {
	switch {
	case containsAny(norm, coffeeWords):
		return CategoryCoffee, CategoryLimit
	case containsAny(norm, pastryWords):
		return CategoryPastry, CategoryLimit
	default:
		return "", DefaultLimit
	}
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

// tokenize splits on non-letters, so "hi" matches "hi!" but not "this".
func tokenize(s string) map[string]struct{} {
	words := wordRE.FindAllString(s, -1)
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func hasWord(words map[string]struct{}, lexicon []string) bool {
	for _, w := range lexicon {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}

// hasPhrase matches multi-word phrases on word boundaries.
func hasPhrase(norm string, phrases []string) bool {
	padded := " " + nonWordRE.ReplaceAllString(norm, " ") + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

var nonWordRE = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
