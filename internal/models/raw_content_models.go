package models

import "time"

// RawContent is one fetched text item before ticker extraction and
// classification. It is the payload of the raw-content Kafka topic.
type RawContent struct {
	ContentID string          `json:"content_id"`
	Source    string          `json:"source"`
	SourceID  string          `json:"source_id"`
	Text      string          `json:"text"`
	Metadata  ContentMetadata `json:"metadata"`
}

type ContentMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author,omitempty"`
	Subreddit string    `json:"subreddit,omitempty"`
	Title     string    `json:"title,omitempty"`
	URL       string    `json:"url,omitempty"`
}
