package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null"

	"github.com/starkescrow/starkescrow/internal/db"
	"github.com/starkescrow/starkescrow/internal/metrics"
	"github.com/starkescrow/starkescrow/internal/tracker"
	"github.com/starkescrow/starkescrow/internal/utils"
)

const (
	attemptsTable       = "transaction_attempts"
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

var ErrAttemptNotFound = errors.New("attempt not found")

// AttemptRecord is the persisted snapshot of a tracker.Attempt. Each attempt keeps a single row holding its latest
// state.
type AttemptRecord struct {
	ID              string      `db:"id" json:"id"`
	Action          string      `db:"action" json:"action"`
	Phase           string      `db:"phase" json:"phase"`
	Stage           string      `db:"stage" json:"stage"`
	TransactionHash null.String `db:"transaction_hash" json:"transaction_hash"`
	ErrorKind       null.String `db:"error_kind" json:"error_kind"`
	ErrorMessage    null.String `db:"error_message" json:"error_message"`
	ExecutionStatus null.String `db:"execution_status" json:"execution_status"`
	FinalityStatus  null.String `db:"finality_status" json:"finality_status"`
	ActualFee       null.String `db:"actual_fee" json:"actual_fee"`
	FeeUnit         null.String `db:"fee_unit" json:"fee_unit"`
	BlockNumber     null.Int    `db:"block_number" json:"block_number"`
	StartedAt       null.Time   `db:"started_at" json:"started_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

func NewAttemptRecord(a tracker.Attempt) AttemptRecord {
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	record := AttemptRecord{
		ID:              a.ID.String(),
		Action:          a.Action,
		Phase:           string(a.Phase),
		Stage:           string(a.Stage),
		TransactionHash: null.NewString(a.TransactionHash, a.TransactionHash != ""),
		ErrorKind:       null.NewString(string(a.ErrorKind), a.ErrorKind != ""),
		ErrorMessage:    null.NewString(utils.SanitizeUTF8(a.ErrorMessage), a.ErrorMessage != ""),
		StartedAt:       null.NewTime(a.StartedAt.UTC(), !a.StartedAt.IsZero()),
		UpdatedAt:       updatedAt.UTC(),
	}

	if r := a.Receipt; r != nil {
		record.ExecutionStatus = null.NewString(string(r.ExecutionStatus), r.ExecutionStatus != "")
		record.FinalityStatus = null.NewString(string(r.FinalityStatus), r.FinalityStatus != "")
		record.ActualFee = null.NewString(r.ActualFee.Amount, r.ActualFee.Amount != "")
		record.FeeUnit = null.NewString(r.ActualFee.Unit, r.ActualFee.Unit != "")
		record.BlockNumber = null.NewInt(int64(r.BlockNumber), r.BlockNumber != 0)
	}

	return record
}

// HistoryFilter narrows a history query. An empty Actions list matches every action.
type HistoryFilter struct {
	Actions []string
	Phase   tracker.Phase
	Limit   int
	Order   SortOrder
}

func (f *HistoryFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit > MaxHistoryLimit {
		f.Limit = MaxHistoryLimit
	}
	if !f.Order.IsValid() {
		f.Order = DESC
	}
}

type AttemptModel struct {
	DB             db.ConnectionPool
	MetricsService metrics.MetricsService
}

var _ tracker.Journal = (*AttemptModel)(nil)

// Record upserts the latest snapshot of an attempt.
func (m *AttemptModel) Record(ctx context.Context, attempt tracker.Attempt) error {
	record := NewAttemptRecord(attempt)
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET
			phase = excluded.phase,
			stage = excluded.stage,
			transaction_hash = excluded.transaction_hash,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message,
			execution_status = excluded.execution_status,
			finality_status = excluded.finality_status,
			actual_fee = excluded.actual_fee,
			fee_unit = excluded.fee_unit,
			block_number = excluded.block_number,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at`,
		attemptsTable, prepareColumns(AttemptRecord{}, ""), namedValues(AttemptRecord{}))

	start := time.Now()
	_, err := m.DB.NamedExecContext(ctx, query, record)
	m.MetricsService.ObserveDBQueryDuration("UPSERT", attemptsTable, time.Since(start).Seconds())
	if err != nil {
		m.MetricsService.IncDBQueryError("UPSERT", attemptsTable, utils.GetDBErrorType(err))
		return fmt.Errorf("recording attempt %s: %w", record.ID, err)
	}
	m.MetricsService.IncDBQuery("UPSERT", attemptsTable)
	return nil
}

func (m *AttemptModel) Get(ctx context.Context, id string) (*AttemptRecord, error) {
	query := m.DB.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, prepareColumns(AttemptRecord{}, ""), attemptsTable))

	var record AttemptRecord
	start := time.Now()
	err := m.DB.GetContext(ctx, &record, query, id)
	m.MetricsService.ObserveDBQueryDuration("SELECT", attemptsTable, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			m.MetricsService.IncDBQuery("SELECT", attemptsTable)
			return nil, ErrAttemptNotFound
		}
		m.MetricsService.IncDBQueryError("SELECT", attemptsTable, utils.GetDBErrorType(err))
		return nil, fmt.Errorf("getting attempt %s: %w", id, err)
	}
	m.MetricsService.IncDBQuery("SELECT", attemptsTable)
	return &record, nil
}

// History returns recorded attempts ordered by their last update.
func (m *AttemptModel) History(ctx context.Context, filter HistoryFilter) ([]AttemptRecord, error) {
	filter.normalize()

	namedQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE 1 = 1`, prepareColumns(AttemptRecord{}, ""), attemptsTable)
	argsMap := map[string]interface{}{"limit": filter.Limit}
	if len(filter.Actions) > 0 {
		namedQuery += ` AND action IN (:actions)`
		argsMap["actions"] = filter.Actions
	}
	if filter.Phase != "" {
		namedQuery += ` AND phase = :phase`
		argsMap["phase"] = string(filter.Phase)
	}
	namedQuery += fmt.Sprintf(` ORDER BY updated_at %s, id %s LIMIT :limit`, filter.Order, filter.Order)

	query, args, err := PrepareNamedQuery(ctx, m.DB, namedQuery, argsMap)
	if err != nil {
		return nil, fmt.Errorf("preparing attempt history query: %w", err)
	}

	records := []AttemptRecord{}
	start := time.Now()
	err = m.DB.SelectContext(ctx, &records, query, args...)
	m.MetricsService.ObserveDBQueryDuration("SELECT", attemptsTable, time.Since(start).Seconds())
	if err != nil {
		m.MetricsService.IncDBQueryError("SELECT", attemptsTable, utils.GetDBErrorType(err))
		return nil, fmt.Errorf("getting attempt history: %w", err)
	}
	m.MetricsService.IncDBQuery("SELECT", attemptsTable)
	return records, nil
}

// DeleteBefore removes terminal attempts last updated before the given time and returns how many were removed.
// The delete and its count run in one transaction.
func (m *AttemptModel) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	query := m.DB.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE updated_at < ? AND phase IN (?, ?)`, attemptsTable))

	start := time.Now()
	deleted, err := db.RunInTransactionWithResult(ctx, m.DB, nil, func(dbTx db.Transaction) (int64, error) {
		result, err := dbTx.ExecContext(ctx, query, before.UTC(), string(tracker.PhaseSuccess), string(tracker.PhaseError))
		if err != nil {
			return 0, fmt.Errorf("deleting attempts before %s: %w", before, err)
		}
		deleted, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("counting deleted attempts: %w", err)
		}
		return deleted, nil
	})
	m.MetricsService.ObserveDBQueryDuration("DELETE", attemptsTable, time.Since(start).Seconds())
	if err != nil {
		m.MetricsService.IncDBQueryError("DELETE", attemptsTable, utils.GetDBErrorType(err))
		return 0, fmt.Errorf("pruning attempt journal: %w", err)
	}
	m.MetricsService.IncDBQuery("DELETE", attemptsTable)
	return deleted, nil
}
