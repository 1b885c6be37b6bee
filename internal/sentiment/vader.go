package sentiment

import (
	"github.com/jonreiter/govader"

	"github.com/spacesedan/tickersense/internal/models"
)

const (
	positiveThreshold = 0.20
	negativeThreshold = -0.20

	// minTextLen is the shortest cleaned text worth scoring.
	minTextLen = 3
)

// VaderClassifier labels text by the VADER compound polarity score.
type VaderClassifier struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderClassifier() *VaderClassifier {
	return &VaderClassifier{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Classify returns the label and the compound score in [-1, 1]. Text that is
// too short after cleaning is neutral with score 0.
func (v *VaderClassifier) Classify(text string) (models.SentimentLabel, float64) {
	plain := CleanText(text)
	if len([]rune(plain)) < minTextLen {
		return models.SentimentNeutral, 0
	}

	score := v.analyzer.PolarityScores(plain).Compound
	return Label(score), score
}

// Label maps a compound score onto the three sentiment labels.
func Label(score float64) models.SentimentLabel {
	switch {
	case score >= positiveThreshold:
		return models.SentimentPositive
	case score <= negativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
