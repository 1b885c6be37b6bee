package kafka_client

import "time"

const KAFKA_TOPIC_RAW_CONTENT = "raw-content" // fetched text from every content outlet

const (
	MAX_RETRIES      = 5
	RETRY_DELAY      = 2 * time.Second
	POLL_TIMEOUT     = 500 * time.Millisecond
	DELIVERY_TIMEOUT = 10 * time.Second
)
