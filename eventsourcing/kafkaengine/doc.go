// Package kafkaengine forwards stored events to a Kafka topic.
//
// The event store stays the source of truth. A Relay reads the store in sequence order through
// eventsourcing.EventReader and writes every stored event as one message, advancing its cursor only
// after the broker acknowledged the batch. Consumers turn messages back into StoredEvents with
// StoredEventFromMessage.
package kafkaengine
