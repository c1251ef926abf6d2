package newsapi

import (
	_ "embed"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Sentiment is a coarse headline label.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

//go:embed lexicon.yaml
var lexiconYAML []byte

type lexicon struct {
	Negative []string `yaml:"negative"`
	Positive []string `yaml:"positive"`
}

var words = mustLoadLexicon(lexiconYAML)

func mustLoadLexicon(data []byte) lexicon {
	var lx lexicon
	if err := yaml.Unmarshal(data, &lx); err != nil {
		panic("newsapi: invalid lexicon: " + err.Error())
	}
	return lx
}

// Classify labels a headline. Negative keywords win over positive ones.
func Classify(headline string) Sentiment {
	// Casers carry state and are not safe for concurrent use.
	t := cases.Lower(language.German).String(headline)
	for _, w := range words.Negative {
		if strings.Contains(t, w) {
			return SentimentNegative
		}
	}
	for _, w := range words.Positive {
		if strings.Contains(t, w) {
			return SentimentPositive
		}
	}
	return SentimentNeutral
}
