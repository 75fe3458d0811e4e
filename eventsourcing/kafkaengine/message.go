package kafkaengine

import (
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

// Header keys of a forwarded event message.
const (
	HeaderEventID        = "event_id"
	HeaderEventName      = "event_name"
	HeaderEventVersion   = "event_version"
	HeaderSequenceNumber = "sequence_number"
	HeaderOccurredAt     = "occurred_at"
	HeaderMetadata       = "metadata"
)

// ErrMissingHeader is returned when a message lacks one of the event headers.
var ErrMissingHeader = errors.New("message header is missing")

// ErrInvalidHeader is returned when an event header cannot be parsed.
var ErrInvalidHeader = errors.New("message header is invalid")

// MessageFrom maps a StoredEvent to a Kafka message keyed by the event id.
func MessageFrom(stored eventsourcing.StoredEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(stored.EventID),
		Value: stored.PayloadJSON,
		Time:  stored.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(stored.EventID)},
			{Key: HeaderEventName, Value: []byte(stored.EventName)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(stored.EventVersion))},
			{Key: HeaderSequenceNumber, Value: []byte(strconv.FormatUint(stored.SequenceNumber, 10))},
			{Key: HeaderOccurredAt, Value: []byte(strconv.FormatInt(stored.OccurredAt.UnixMilli(), 10))},
			{Key: HeaderMetadata, Value: stored.MetadataJSON},
		},
	}
}

// StoredEventFromMessage rebuilds the StoredEvent that MessageFrom forwarded.
func StoredEventFromMessage(message kafka.Message) (eventsourcing.StoredEvent, error) {
	headers := make(map[string][]byte, len(message.Headers))
	for _, header := range message.Headers {
		headers[header.Key] = header.Value
	}

	for _, key := range []string{HeaderEventID, HeaderEventName, HeaderEventVersion, HeaderSequenceNumber, HeaderOccurredAt, HeaderMetadata} {
		if _, ok := headers[key]; !ok {
			return eventsourcing.StoredEvent{}, errors.Join(ErrMissingHeader, errors.New(key))
		}
	}

	version, err := strconv.Atoi(string(headers[HeaderEventVersion]))
	if err != nil {
		return eventsourcing.StoredEvent{}, errors.Join(ErrInvalidHeader, err)
	}

	sequenceNumber, err := strconv.ParseUint(string(headers[HeaderSequenceNumber]), 10, 64)
	if err != nil {
		return eventsourcing.StoredEvent{}, errors.Join(ErrInvalidHeader, err)
	}

	occurredAt, err := strconv.ParseInt(string(headers[HeaderOccurredAt]), 10, 64)
	if err != nil {
		return eventsourcing.StoredEvent{}, errors.Join(ErrInvalidHeader, err)
	}

	stored, err := eventsourcing.BuildStoredEvent(
		string(headers[HeaderEventID]),
		string(headers[HeaderEventName]),
		version,
		time.UnixMilli(occurredAt).UTC(),
		message.Value,
		headers[HeaderMetadata],
	)
	if err != nil {
		return eventsourcing.StoredEvent{}, err
	}

	stored.SequenceNumber = sequenceNumber

	return stored, nil
}
