package eventsourcing

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Replay folds every event of reader, in sequence order, into the repository of the Service.
//
// It is meant for rebuilding states after the repository was lost or reset: the repository
// must not already contain projections of the replayed events, or they are applied twice.
// Replay returns the number of events it projected.
func (s *Service[C, E, S]) Replay(ctx context.Context, reader EventReader, decode EventDecoder[E]) (int, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, spanNameReplay, nil)

	count, err := s.replay(ctx, reader, decode)

	status := statusSuccess
	if err != nil {
		status = statusError
		s.logError(ctx, logMsgReplayFailed, err, logAttrEventCount, count)
	} else {
		s.logInfo(ctx, logMsgReplayCompleted, logAttrEventCount, count, logAttrDurationMS, toMilliseconds(time.Since(start)))
	}

	s.recordDuration(ctx, MetricReplayDuration, time.Since(start), operationReplay, status)
	s.finishSpan(span, status, map[string]string{spanAttrEventCount: strconv.Itoa(count)})

	return count, err
}

func (s *Service[C, E, S]) replay(ctx context.Context, reader EventReader, decode EventDecoder[E]) (int, error) {
	var cursor SequenceNumber
	count := 0

	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		batch, err := reader.ReadFrom(ctx, cursor, s.replayBatchSize)
		if err != nil {
			return count, asStoreFailure(err)
		}

		if len(batch) == 0 {
			return count, nil
		}

		for _, stored := range batch {
			event, decodeErr := decode(stored)
			if decodeErr != nil {
				if errors.Is(decodeErr, ErrDecodingEventFailed) {
					return count, decodeErr
				}

				return count, errors.Join(ErrDecodingEventFailed, decodeErr)
			}

			if _, projectErr := s.project(ctx, event, Result[E, S]{Event: event, Stage: StagePublished}); projectErr != nil {
				return count, projectErr
			}

			cursor = stored.SequenceNumber
			count++
		}
	}
}
