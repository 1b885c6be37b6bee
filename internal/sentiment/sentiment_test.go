package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spacesedan/tickersense/internal/models"
)

func TestExtractTickers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single", "Buying more $AAPL today", []string{"AAPL"}},
		{"dedup and sort", "$TSLA up, $aapl down, $TSLA again", []string{"AAPL", "TSLA"}},
		{"five letter cap", "$GOOGLE is not a ticker", []string{"GOOGL"}},
		{"bare dollar", "spent $ 100 and $5", nil},
		{"none", "no cashtags here", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTickers(tt.text))
		})
	}
}

func TestCleanText(t *testing.T) {
	in := "**Huge** news 🚀🚀 for $NVDA   see [the post](https://example.com/x) and https://t.co/abc\n\nok"
	assert.Equal(t, "Huge news for $NVDA see the post and ok", CleanText(in))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, models.SentimentPositive, Label(0.20))
	assert.Equal(t, models.SentimentPositive, Label(0.9))
	assert.Equal(t, models.SentimentNegative, Label(-0.20))
	assert.Equal(t, models.SentimentNeutral, Label(0.19))
	assert.Equal(t, models.SentimentNeutral, Label(-0.19))
	assert.Equal(t, models.SentimentNeutral, Label(0))
}

func TestVaderClassifier(t *testing.T) {
	c := NewVaderClassifier()

	label, score := c.Classify("I love this stock, amazing earnings and great growth!")
	assert.Equal(t, models.SentimentPositive, label)
	assert.Greater(t, score, 0.2)

	label, score = c.Classify("Terrible results, awful guidance, I hate this disaster.")
	assert.Equal(t, models.SentimentNegative, label)
	assert.Less(t, score, -0.2)

	label, score = c.Classify("🚀🚀")
	assert.Equal(t, models.SentimentNeutral, label)
	assert.Zero(t, score)
}
