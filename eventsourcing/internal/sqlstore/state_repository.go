package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/eventsourcing/internal/adapters"
)

const (
	colStateID    = "state_id"
	colStateIndex = "state_index"
	colData       = "data"
	colUpdatedAt  = "updated_at"
)

// StateRepository stores states as JSON documents keyed by identity, guarded by their index.
type StateRepository[S eventsourcing.State] struct {
	db      adapters.DBAdapter
	dialect goqu.DialectWrapper
	initial func(id string) S
	Options
}

// NewStateRepository creates a StateRepository for the given goqu dialect.
// initial must return the state with the given identity and index 0.
func NewStateRepository[S eventsourcing.State](
	db adapters.DBAdapter,
	dialect string,
	initial func(id string) S,
	options ...Option,
) (*StateRepository[S], error) {

	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	if initial == nil {
		return nil, ErrNilInitialStateFactory
	}

	wrapper, err := dialectFor(dialect)
	if err != nil {
		return nil, err
	}

	o, err := buildOptions(options)
	if err != nil {
		return nil, err
	}

	return &StateRepository[S]{db: db, dialect: wrapper, initial: initial, Options: o}, nil
}

// Get returns the stored state, or the initial state when no row exists for id.
func (r *StateRepository[S]) Get(ctx context.Context, id string) (S, error) {
	var state S

	query, _, err := r.dialect.
		From(r.statesTableName).
		Select(colData).
		Where(goqu.C(colStateID).Eq(id)).
		ToSQL()
	if err != nil {
		return state, r.failed(ctx, logMsgBuildQueryFailed, operationGet, errorTypeBuildQuery, storeFailure(err))
	}

	start := time.Now()
	rows, err := r.db.Query(ctx, query)
	r.logQueryWithDuration(ctx, query, operationGet, time.Since(start))

	if err != nil {
		return state, r.failed(ctx, logMsgDBQueryFailed, operationGet, errorTypeDatabaseExec, storeFailure(err))
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logError(ctx, logMsgCloseRowsFailed, closeErr)
		}
	}()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return state, r.failed(ctx, logMsgDBQueryFailed, operationGet, errorTypeDatabaseExec, storeFailure(err))
		}

		return r.initial(id), nil
	}

	var data []byte
	if err = rows.Scan(&data); err != nil {
		return state, r.failed(ctx, logMsgScanRowFailed, operationGet, errorTypeScan, storeFailure(err))
	}

	if err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &state); err != nil {
		return state, r.failed(ctx, logMsgScanRowFailed, operationGet, errorTypeMarshal, storeFailure(err), logAttrStateID, id)
	}

	return state, nil
}

// Save writes state if the stored index still equals expectedIndex, a missing row counts as index 0.
func (r *StateRepository[S]) Save(ctx context.Context, state S, expectedIndex uint64) error {
	if state.StateID() == "" {
		return eventsourcing.ErrEmptyStateID
	}

	ctx, span := r.startSpan(ctx, spanNameSave, map[string]string{
		spanAttrOperation: operationSave,
		spanAttrStateID:   state.StateID(),
	})

	start := time.Now()
	rowsAffected, status, err := r.save(ctx, state, expectedIndex)

	r.recordDuration(ctx, MetricSaveDuration, time.Since(start), operationSave, status)
	r.finishSpan(span, status, map[string]string{spanAttrRowsAffected: strconv.FormatInt(rowsAffected, 10)})

	return err
}

func (r *StateRepository[S]) save(ctx context.Context, state S, expectedIndex uint64) (int64, string, error) {
	query, err := r.BuildSaveQuery(state, expectedIndex)
	if err != nil {
		return 0, statusError, r.failed(ctx, logMsgBuildQueryFailed, operationSave, errorTypeBuildQuery, storeFailure(err))
	}

	start := time.Now()
	result, err := r.db.Exec(ctx, query)
	r.logQueryWithDuration(ctx, query, operationSave, time.Since(start))

	if err != nil {
		return 0, statusError, r.failed(ctx, logMsgDBExecFailed, operationSave, errorTypeDatabaseExec, storeFailure(err),
			logAttrStateID, state.StateID())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, statusError, r.failed(ctx, logMsgRowsAffectedFailed, operationSave, errorTypeRowsAffected, storeFailure(err))
	}

	if rowsAffected == 0 {
		r.logInfo(ctx, logMsgConcurrencyConflict,
			logAttrStateID, state.StateID(),
			logAttrExpectedIndex, expectedIndex,
			logAttrRowsAffected, rowsAffected)
		r.incrementCounter(ctx, MetricConcurrencyConflicts, map[string]string{
			spanAttrOperation: operationSave,
			"conflict_type":   "state_index",
		})

		return 0, statusConflict, fmt.Errorf("%w: state %q expected index %d",
			eventsourcing.ErrConcurrentModification, state.StateID(), expectedIndex)
	}

	return rowsAffected, statusSuccess, nil
}

// BuildSaveQuery returns the compare-and-set statement for state:
// an INSERT that ignores an existing row when expectedIndex is 0, an index-guarded UPDATE otherwise.
func (r *StateRepository[S]) BuildSaveQuery(state S, expectedIndex uint64) (string, error) {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(state)
	if err != nil {
		return "", err
	}

	updatedAt := r.clock().UnixMilli()

	if expectedIndex == 0 {
		query, _, buildErr := r.dialect.
			Insert(r.statesTableName).
			Rows(goqu.Record{
				colStateID:    state.StateID(),
				colStateIndex: state.StateIndex(),
				colData:       string(data),
				colUpdatedAt:  updatedAt,
			}).
			OnConflict(goqu.DoNothing()).
			ToSQL()

		return query, buildErr
	}

	query, _, err := r.dialect.
		Update(r.statesTableName).
		Set(goqu.Record{
			colStateIndex: state.StateIndex(),
			colData:       string(data),
			colUpdatedAt:  updatedAt,
		}).
		Where(
			goqu.C(colStateID).Eq(state.StateID()),
			goqu.C(colStateIndex).Eq(expectedIndex),
		).
		ToSQL()

	return query, err
}
