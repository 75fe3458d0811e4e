package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/eventsourcing/internal/adapters"
)

const (
	colSequenceNumber = "sequence_number"
	colEventID        = "event_id"
	colEventName      = "event_name"
	colEventVersion   = "event_version"
	colOccurredAt     = "occurred_at"
	colPayload        = "payload"
	colMetadata       = "metadata"
)

// EventStore appends events to the events table and reads them back in sequence order.
type EventStore struct {
	db      adapters.DBAdapter
	dialect goqu.DialectWrapper
	Options
}

// NewEventStore creates an EventStore for the given goqu dialect.
func NewEventStore(db adapters.DBAdapter, dialect string, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	wrapper, err := dialectFor(dialect)
	if err != nil {
		return nil, err
	}

	o, err := buildOptions(options)
	if err != nil {
		return nil, err
	}

	return &EventStore{db: db, dialect: wrapper, Options: o}, nil
}

// Publish inserts the event. A second event with the same id fails with eventsourcing.ErrDuplicateEvent.
func (es *EventStore) Publish(ctx context.Context, event eventsourcing.Event) error {
	ctx, span := es.startSpan(ctx, spanNamePublish, map[string]string{
		spanAttrOperation: operationPublish,
		spanAttrEventID:   event.EventID(),
		spanAttrEventName: event.EventName(),
	})

	start := time.Now()
	status, err := es.publish(ctx, event)

	es.recordDuration(ctx, MetricPublishDuration, time.Since(start), operationPublish, status)
	es.finishSpan(span, status, nil)

	return err
}

func (es *EventStore) publish(ctx context.Context, event eventsourcing.Event) (string, error) {
	stored, err := eventsourcing.StoredEventFrom(ctx, event)
	if err != nil {
		return statusError, es.failed(ctx, logMsgBuildQueryFailed, operationPublish, errorTypeMarshal, err)
	}

	query, err := es.BuildInsertEventQuery(stored)
	if err != nil {
		return statusError, es.failed(ctx, logMsgBuildQueryFailed, operationPublish, errorTypeBuildQuery, storeFailure(err))
	}

	start := time.Now()
	result, err := es.db.Exec(ctx, query)
	es.logQueryWithDuration(ctx, query, operationPublish, time.Since(start))

	if err != nil {
		return statusError, es.failed(ctx, logMsgDBExecFailed, operationPublish, errorTypeDatabaseExec, storeFailure(err),
			logAttrEventID, stored.EventID)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return statusError, es.failed(ctx, logMsgRowsAffectedFailed, operationPublish, errorTypeRowsAffected, storeFailure(err))
	}

	if rowsAffected == 0 {
		es.logInfo(ctx, logMsgDuplicateEvent, logAttrEventID, stored.EventID)
		es.incrementCounter(ctx, MetricDuplicateEvents, map[string]string{spanAttrOperation: operationPublish})

		return statusDuplicate, fmt.Errorf("%w: %s", eventsourcing.ErrDuplicateEvent, stored.EventID)
	}

	return statusSuccess, nil
}

// BuildInsertEventQuery returns the INSERT statement for a stored event.
func (es *EventStore) BuildInsertEventQuery(stored eventsourcing.StoredEvent) (string, error) {
	query, _, err := es.dialect.
		Insert(es.eventsTableName).
		Rows(goqu.Record{
			colEventID:      stored.EventID,
			colEventName:    stored.EventName,
			colEventVersion: stored.EventVersion,
			colOccurredAt:   stored.OccurredAt.UnixMilli(),
			colPayload:      string(stored.PayloadJSON),
			colMetadata:     string(stored.MetadataJSON),
		}).
		OnConflict(goqu.DoNothing()).
		ToSQL()

	return query, err
}

// ReadFrom returns up to limit events with a sequence number greater than after, in sequence order.
func (es *EventStore) ReadFrom(ctx context.Context, after eventsourcing.SequenceNumber, limit int) (eventsourcing.StoredEvents, error) {
	ctx, span := es.startSpan(ctx, spanNameRead, map[string]string{spanAttrOperation: operationRead})

	start := time.Now()
	events, err := es.readFrom(ctx, after, limit)

	status := statusSuccess
	if err != nil {
		status = statusError
	}

	es.recordDuration(ctx, MetricReadDuration, time.Since(start), operationRead, status)
	es.finishSpan(span, status, map[string]string{spanAttrEventCount: strconv.Itoa(len(events))})

	return events, err
}

func (es *EventStore) readFrom(ctx context.Context, after eventsourcing.SequenceNumber, limit int) (eventsourcing.StoredEvents, error) {
	query, err := es.BuildReadFromQuery(after, limit)
	if err != nil {
		return nil, es.failed(ctx, logMsgBuildQueryFailed, operationRead, errorTypeBuildQuery, storeFailure(err))
	}

	start := time.Now()
	rows, err := es.db.Query(ctx, query)
	es.logQueryWithDuration(ctx, query, operationRead, time.Since(start))

	if err != nil {
		return nil, es.failed(ctx, logMsgDBQueryFailed, operationRead, errorTypeDatabaseExec, storeFailure(err))
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			es.logError(ctx, logMsgCloseRowsFailed, closeErr)
		}
	}()

	events := make(eventsourcing.StoredEvents, 0)

	for rows.Next() {
		var (
			sequenceNumber int64
			eventID        string
			eventName      string
			eventVersion   int64
			occurredAt     int64
			payload        []byte
			metadata       []byte
		)

		if err = rows.Scan(&sequenceNumber, &eventID, &eventName, &eventVersion, &occurredAt, &payload, &metadata); err != nil {
			return nil, es.failed(ctx, logMsgScanRowFailed, operationRead, errorTypeScan, storeFailure(err))
		}

		stored, buildErr := eventsourcing.BuildStoredEvent(
			eventID,
			eventName,
			int(eventVersion),
			time.UnixMilli(occurredAt).UTC(),
			payload,
			metadata,
		)
		if buildErr != nil {
			return nil, es.failed(ctx, logMsgScanRowFailed, operationRead, errorTypeScan, storeFailure(buildErr))
		}

		stored.SequenceNumber = eventsourcing.SequenceNumber(sequenceNumber)
		events = append(events, stored)
	}

	if err = rows.Err(); err != nil {
		return nil, es.failed(ctx, logMsgDBQueryFailed, operationRead, errorTypeDatabaseExec, storeFailure(err))
	}

	return events, nil
}

// BuildReadFromQuery returns the SELECT statement used by ReadFrom.
func (es *EventStore) BuildReadFromQuery(after eventsourcing.SequenceNumber, limit int) (string, error) {
	if limit <= 0 {
		return "", errors.New("limit must be positive")
	}

	query, _, err := es.dialect.
		From(es.eventsTableName).
		Select(colSequenceNumber, colEventID, colEventName, colEventVersion, colOccurredAt, colPayload, colMetadata).
		Where(goqu.C(colSequenceNumber).Gt(after)).
		Order(goqu.C(colSequenceNumber).Asc()).
		Limit(uint(limit)).
		ToSQL()

	return query, err
}

func storeFailure(err error) error {
	return errors.Join(eventsourcing.ErrStoreFailure, err)
}
