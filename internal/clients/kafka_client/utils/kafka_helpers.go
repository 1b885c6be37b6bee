package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spacesedan/tickersense/internal/models"
)

// ErrMalformedPayload marks a raw-content message that can never be
// processed, however often it is redelivered.
var ErrMalformedPayload = errors.New("malformed raw content payload")

func EncodeRawContent(raw models.RawContent) ([]byte, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		slog.Warn("[KafkaUtils] Failed to serialize raw content",
			slog.String("content_id", raw.ContentID),
			slog.String("error", err.Error()))
		return nil, err
	}
	return data, nil
}

// DecodeRawContent parses a message value and rejects items that lack the
// fields mention ids and attribution are derived from.
func DecodeRawContent(data []byte) (models.RawContent, error) {
	var raw models.RawContent
	if err := json.Unmarshal(data, &raw); err != nil {
		return raw, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if raw.ContentID == "" || raw.Source == "" {
		return raw, fmt.Errorf("%w: content_id and source are required", ErrMalformedPayload)
	}
	return raw, nil
}

func HandleConsumerError(err error) {
	if err == nil {
		return
	}
	slog.Error("[KafkaUtils] Kafka Consumer Error",
		slog.String("error", err.Error()))
}
