package kafkaengine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/eventsourcing/kafkaengine"
	"github.com/esaucy/esaucy-go/eventsourcing/memoryengine"
)

type messageWriterSpy struct {
	mu       sync.Mutex
	messages []kafka.Message
	failNext int
}

func (w *messageWriterSpy) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failNext > 0 {
		w.failNext--
		return errors.New("leader not available")
	}

	w.messages = append(w.messages, msgs...)

	return nil
}

func (w *messageWriterSpy) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]kafka.Message(nil), w.messages...)
}

type noted struct {
	eventsourcing.EventHeader
	N int `json:"n"`
}

func storeWith(t *testing.T, count int) *memoryengine.EventStore {
	t.Helper()

	store, err := memoryengine.NewEventStore()
	require.NoError(t, err)

	for i := 0; i < count; i++ {
		event := noted{
			EventHeader: eventsourcing.BuildEventHeader(
				"evt-"+string(rune('a'+i)),
				"Noted",
				1,
				time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC).Add(time.Duration(i)*time.Millisecond),
			),
			N: i,
		}
		require.NoError(t, store.Publish(context.Background(), event))
	}

	return store
}

func Test_NewRelay_ValidatesInput(t *testing.T) {
	store := storeWith(t, 0)
	writer := &messageWriterSpy{}

	_, err := kafkaengine.NewRelay(nil, writer)
	assert.ErrorIs(t, err, kafkaengine.ErrNilEventReader)

	_, err = kafkaengine.NewRelay(store, nil)
	assert.ErrorIs(t, err, kafkaengine.ErrNilMessageWriter)

	_, err = kafkaengine.NewRelay(store, writer, kafkaengine.WithBatchSize(0))
	assert.ErrorIs(t, err, kafkaengine.ErrInvalidBatchSize)

	_, err = kafkaengine.NewRelay(store, writer, kafkaengine.WithPollInterval(0))
	assert.ErrorIs(t, err, kafkaengine.ErrInvalidPollInterval)
}

func Test_Relay_Forward_WritesBatchesInSequenceOrder(t *testing.T) {
	// arrange
	ctx := context.Background()
	writer := &messageWriterSpy{}
	relay, err := kafkaengine.NewRelay(storeWith(t, 5), writer, kafkaengine.WithBatchSize(2))
	require.NoError(t, err)

	// act
	var counts []int
	for i := 0; i < 4; i++ {
		forwarded, forwardErr := relay.Forward(ctx)
		require.NoError(t, forwardErr)
		counts = append(counts, forwarded)
	}

	// assert
	assert.Equal(t, []int{2, 2, 1, 0}, counts)
	assert.Equal(t, eventsourcing.SequenceNumber(5), relay.Cursor())

	messages := writer.written()
	require.Len(t, messages, 5)
	for i, message := range messages {
		assert.Equal(t, "evt-"+string(rune('a'+i)), string(message.Key))
	}
}

func Test_Relay_Forward_KeepsCursorWhenWriteFails(t *testing.T) {
	// arrange
	ctx := context.Background()
	writer := &messageWriterSpy{failNext: 1}
	relay, err := kafkaengine.NewRelay(storeWith(t, 3), writer)
	require.NoError(t, err)

	// act
	_, firstErr := relay.Forward(ctx)
	forwarded, secondErr := relay.Forward(ctx)

	// assert
	assert.ErrorIs(t, firstErr, kafkaengine.ErrForwardingFailed)
	assert.NoError(t, secondErr)
	assert.Equal(t, 3, forwarded)
	assert.Len(t, writer.written(), 3)
}

func Test_Relay_WithStartAfter_SkipsForwardedEvents(t *testing.T) {
	writer := &messageWriterSpy{}
	relay, err := kafkaengine.NewRelay(storeWith(t, 4), writer, kafkaengine.WithStartAfter(3))
	require.NoError(t, err)

	forwarded, err := relay.Forward(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, forwarded)
	assert.Equal(t, "evt-d", string(writer.written()[0].Key))
}

func Test_Relay_Run_StopsWhenContextIsDone(t *testing.T) {
	// arrange
	writer := &messageWriterSpy{}
	relay, err := kafkaengine.NewRelay(storeWith(t, 3), writer, kafkaengine.WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	// act
	go func() { done <- relay.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(writer.written()) == 3 }, time.Second, time.Millisecond)
	cancel()

	// assert
	select {
	case runErr := <-done:
		assert.ErrorIs(t, runErr, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func Test_StoredEventFromMessage_RebuildsForwardedEvent(t *testing.T) {
	// arrange
	stored, err := eventsourcing.BuildStoredEvent(
		"evt-1",
		"Noted",
		2,
		time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC),
		[]byte(`{"text":"hi"}`),
		[]byte(`{"causationId":"cmd-1"}`),
	)
	require.NoError(t, err)
	stored.SequenceNumber = 42

	// act
	rebuilt, err := kafkaengine.StoredEventFromMessage(kafkaengine.MessageFrom(stored))

	// assert
	require.NoError(t, err)
	assert.Equal(t, stored, rebuilt)
}

func Test_StoredEventFromMessage_RejectsIncompleteHeaders(t *testing.T) {
	_, err := kafkaengine.StoredEventFromMessage(kafka.Message{Value: []byte(`{}`)})
	assert.ErrorIs(t, err, kafkaengine.ErrMissingHeader)

	message := kafkaengine.MessageFrom(eventsourcing.StoredEvent{EventID: "evt-1", PayloadJSON: []byte(`{}`), MetadataJSON: []byte(`{}`)})
	for i := range message.Headers {
		if message.Headers[i].Key == kafkaengine.HeaderEventVersion {
			message.Headers[i].Value = []byte("v2")
		}
	}

	_, err = kafkaengine.StoredEventFromMessage(message)
	assert.ErrorIs(t, err, kafkaengine.ErrInvalidHeader)
}
