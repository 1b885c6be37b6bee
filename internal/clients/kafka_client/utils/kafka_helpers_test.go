package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/tickersense/internal/models"
)

func TestDecodeRawContent(t *testing.T) {
	raw := models.RawContent{
		ContentID: "c1",
		Source:    models.SourceReddit,
		SourceID:  "abc",
		Text:      "$AAPL",
		Metadata:  models.ContentMetadata{Timestamp: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), Subreddit: "stocks"},
	}
	data, err := EncodeRawContent(raw)
	require.NoError(t, err)

	got, err := DecodeRawContent(data)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecodeRawContent_Rejects(t *testing.T) {
	for name, data := range map[string]string{
		"not json":       "{",
		"missing id":     `{"source":"reddit","text":"$AAPL"}`,
		"missing source": `{"content_id":"c1","text":"$AAPL"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRawContent([]byte(data))
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}
