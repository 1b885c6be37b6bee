// Package ingest turns fetched text into classified ticker mentions.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spacesedan/tickersense/internal/models"
	"github.com/spacesedan/tickersense/internal/sentiment"
)

var ErrInvalidMention = errors.New("invalid mention")

// Classifier labels a whole text. It is called once per raw item.
type Classifier interface {
	Classify(text string) (models.SentimentLabel, float64)
}

// ContentID derives a stable id for one item of one source.
func ContentID(source, sourceID string) string {
	hash := sha256.Sum256([]byte(source + ":" + sourceID))
	return hex.EncodeToString(hash[:])
}

// MentionID is deterministic per (content, ticker) so a redelivered item
// maps onto the mentions it already produced.
func MentionID(contentID, ticker string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(contentID+"#"+ticker)).String()
}

// Normalize produces one mention per ticker found in raw.Text, all carrying
// the same classification. Items without text or tickers yield nothing.
func Normalize(raw models.RawContent, classifier Classifier, now time.Time) []models.Mention {
	if strings.TrimSpace(raw.Text) == "" {
		return nil
	}
	tickers := sentiment.ExtractTickers(raw.Text)
	if len(tickers) == 0 {
		return nil
	}

	label, score := classifier.Classify(raw.Text)

	createdAt := raw.Metadata.Timestamp
	if createdAt.IsZero() {
		createdAt = now
	}
	var sourceID *string
	if raw.SourceID != "" {
		id := raw.SourceID
		sourceID = &id
	}

	mentions := make([]models.Mention, 0, len(tickers))
	for _, ticker := range tickers {
		var id string
		if raw.ContentID != "" {
			id = MentionID(raw.ContentID, ticker)
		}
		mentions = append(mentions, models.Mention{
			ID:             id,
			Ticker:         ticker,
			Text:           raw.Text,
			SentimentLabel: label,
			SentimentScore: score,
			Source:         raw.Source,
			SourceID:       sourceID,
			CreatedAt:      createdAt,
			ProcessedAt:    now,
		})
	}
	return mentions
}

// ValidateMention checks a pre-scored feed record and canonicalises its
// ticker and label.
func ValidateMention(m models.Mention) (models.Mention, error) {
	m.Ticker = strings.ToUpper(strings.TrimSpace(m.Ticker))
	if m.Ticker == "" {
		return m, fmt.Errorf("%w: ticker is required", ErrInvalidMention)
	}
	label, ok := models.ParseSentimentLabel(string(m.SentimentLabel))
	if !ok {
		return m, fmt.Errorf("%w: unknown sentiment %q", ErrInvalidMention, m.SentimentLabel)
	}
	m.SentimentLabel = label
	if m.SentimentScore < -1 || m.SentimentScore > 1 {
		return m, fmt.Errorf("%w: sentiment_score %v outside [-1, 1]", ErrInvalidMention, m.SentimentScore)
	}
	if strings.TrimSpace(m.Source) == "" {
		return m, fmt.Errorf("%w: source is required", ErrInvalidMention)
	}
	return m, nil
}
