package newsapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		headline string
		want     Sentiment
	}{
		{"Neubau am Hauptbahnhof geplant", SentimentPositive},
		{"INVESTITION in die Infrastruktur", SentimentPositive},
		{"ERÖFFNUNG des neuen Bürgerzentrums", SentimentPositive},
		{"Kriminalität im Kiez gestiegen", SentimentNegative},
		{"TÖTUNGSDELIKT in Neukölln", SentimentNegative},
		{"Brand in Lagerhalle", SentimentNegative},
		// negative wins
		{"Unfall vor der Schule", SentimentNegative},
		{"Wetter bleibt wechselhaft", SentimentNeutral},
		{"", SentimentNeutral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.headline), tt.headline)
	}
}

func TestLexiconLoaded(t *testing.T) {
	assert.Len(t, words.Negative, 7)
	assert.Len(t, words.Positive, 7)
	assert.Contains(t, words.Negative, "tötung")
}
