package kafka_client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	results []readResult
}

type readResult struct {
	msg *kafka.Message
	err error
}

func (r *scriptedReader) ReadMessage(time.Duration) (*kafka.Message, error) {
	if len(r.results) == 0 {
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	next := r.results[0]
	r.results = r.results[1:]
	return next.msg, next.err
}

func TestIterator_ReturnsMessage(t *testing.T) {
	want := &kafka.Message{Value: []byte("x")}
	it := NewKafkaMessageIterator(context.Background(), &scriptedReader{results: []readResult{{msg: want}}})

	got, err := it.Next()
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestIterator_TimeoutIsNotAnError(t *testing.T) {
	it := NewKafkaMessageIterator(context.Background(), &scriptedReader{})

	got, err := it.Next()
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestIterator_AllBrokersDownAborts(t *testing.T) {
	down := kafka.NewError(kafka.ErrAllBrokersDown, "down", true)
	it := NewKafkaMessageIterator(context.Background(), &scriptedReader{results: []readResult{{err: down}}})

	_, err := it.Next()
	assert.Error(t, err)
}

func TestIterator_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it := NewKafkaMessageIterator(ctx, &scriptedReader{})

	_, err := it.Next()
	assert.ErrorIs(t, err, context.Canceled)
}

type flakyCommitter struct {
	failures int
	calls    int
}

func (c *flakyCommitter) CommitMessage(*kafka.Message) ([]kafka.TopicPartition, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, errors.New("coordinator not available")
	}
	return nil, nil
}

func TestCommitHandler_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	committer := &flakyCommitter{}

	err := NewCommitHandler(ctx, committer).Commit(&kafka.Message{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, committer.calls)
}

func TestCommitHandler_Commits(t *testing.T) {
	committer := &flakyCommitter{}
	err := NewCommitHandler(context.Background(), committer).Commit(&kafka.Message{})
	require.NoError(t, err)
	assert.Equal(t, 1, committer.calls)
}
