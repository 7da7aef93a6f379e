// Package db persists evidence runs and model comparisons with sqlx.
package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/RushiGong/ESPEI/domain/evidence"
	"github.com/RushiGong/ESPEI/internal/errors"

	"github.com/cockroachdb/apd/v3"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to postgres or sqlite3 and verifies the connection
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to connect to %s database", driver), err)
	}
	return db, nil
}

type runRow struct {
	ID              string    `db:"id"`
	Model           string    `db:"model"`
	Unit            string    `db:"unit"`
	Value           string    `db:"value"`
	Samples         int       `db:"samples"`
	BurnIn          int       `db:"burn_in"`
	PrecisionDigits int64     `db:"precision_digits"`
	Rounding        string    `db:"rounding"`
	CreatedAt       time.Time `db:"created_at"`
}

type comparisonRow struct {
	ID        string    `db:"id"`
	Run1ID    string    `db:"run1_id"`
	Run2ID    string    `db:"run2_id"`
	Space     string    `db:"space"`
	Ratio     string    `db:"ratio"`
	Favored   string    `db:"favored"`
	Strength  string    `db:"strength"`
	CreatedAt time.Time `db:"created_at"`
}

// ResultRepository stores decimals as text so no precision is lost
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveRun inserts an evidence run
func (r *ResultRepository) SaveRun(ctx context.Context, run *evidence.Run) error {
	return insertRun(ctx, r.db, run)
}

func insertRun(ctx context.Context, db sqlx.ExtContext, run *evidence.Run) error {
	if run.Evidence.Value == nil {
		return errors.ValidationError("evidence run has no value")
	}
	row := runRow{
		ID:              run.ID,
		Model:           run.Evidence.Model,
		Unit:            run.Evidence.Unit.String(),
		Value:           run.Evidence.Value.String(),
		Samples:         run.Evidence.Samples,
		BurnIn:          run.Evidence.BurnIn,
		PrecisionDigits: int64(run.Precision.Digits),
		Rounding:        run.Precision.Rounding,
		CreatedAt:       run.CreatedAt.UTC(),
	}

	query := `
		INSERT INTO evidence_runs (
			id, model, unit, value, samples, burn_in, precision_digits, rounding, created_at
		) VALUES (
			:id, :model, :unit, :value, :samples, :burn_in, :precision_digits, :rounding, :created_at
		)`
	if _, err := sqlx.NamedExecContext(ctx, db, query, row); err != nil {
		return errors.DatabaseError("failed to insert evidence run", err)
	}
	return nil
}

// GetRun loads an evidence run by id
func (r *ResultRepository) GetRun(ctx context.Context, id string) (*evidence.Run, error) {
	var row runRow
	query := r.db.Rebind(`
		SELECT id, model, unit, value, samples, burn_in, precision_digits, rounding, created_at
		FROM evidence_runs
		WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("evidence run " + id)
		}
		return nil, errors.DatabaseError("failed to get evidence run", err)
	}
	return row.toRun()
}

// SaveComparison inserts both runs and the comparison in one transaction,
// so a failed write leaves no orphaned runs behind
func (r *ResultRepository) SaveComparison(ctx context.Context, rec *evidence.ComparisonRecord) error {
	if rec.Run1 == nil || rec.Run2 == nil || rec.Comparison.Ratio == nil {
		return errors.ValidationError("comparison record is incomplete")
	}
	row := comparisonRow{
		ID:        rec.ID,
		Run1ID:    rec.Run1.ID,
		Run2ID:    rec.Run2.ID,
		Space:     string(rec.Comparison.Space),
		Ratio:     rec.Comparison.Ratio.String(),
		Favored:   rec.Comparison.Favored.String(),
		Strength:  rec.Comparison.Strength.String(),
		CreatedAt: rec.CreatedAt.UTC(),
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, run := range []*evidence.Run{rec.Run1, rec.Run2} {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO model_comparisons (
			id, run1_id, run2_id, space, ratio, favored, strength, created_at
		) VALUES (
			:id, :run1_id, :run2_id, :space, :ratio, :favored, :strength, :created_at
		)`
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return errors.DatabaseError("failed to insert model comparison", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit model comparison", err)
	}
	return nil
}

// GetComparison loads a comparison with both of its runs
func (r *ResultRepository) GetComparison(ctx context.Context, id string) (*evidence.ComparisonRecord, error) {
	var row comparisonRow
	query := r.db.Rebind(`
		SELECT id, run1_id, run2_id, space, ratio, favored, strength, created_at
		FROM model_comparisons
		WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("model comparison " + id)
		}
		return nil, errors.DatabaseError("failed to get model comparison", err)
	}
	return r.hydrate(ctx, row)
}

// ListComparisons returns the most recent comparisons first
func (r *ResultRepository) ListComparisons(ctx context.Context, limit int) ([]*evidence.ComparisonRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []comparisonRow
	query := r.db.Rebind(`
		SELECT id, run1_id, run2_id, space, ratio, favored, strength, created_at
		FROM model_comparisons
		ORDER BY created_at DESC
		LIMIT ?`)
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.DatabaseError("failed to list model comparisons", err)
	}

	records := make([]*evidence.ComparisonRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := r.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *ResultRepository) hydrate(ctx context.Context, row comparisonRow) (*evidence.ComparisonRecord, error) {
	run1, err := r.GetRun(ctx, row.Run1ID)
	if err != nil {
		return nil, err
	}
	run2, err := r.GetRun(ctx, row.Run2ID)
	if err != nil {
		return nil, err
	}

	ratio, _, err := apd.NewFromString(row.Ratio)
	if err != nil {
		return nil, errors.Wrapf(err, "stored ratio %q is not a decimal", row.Ratio)
	}
	favored, err := evidence.ParseFavoredModel(row.Favored)
	if err != nil {
		return nil, errors.Wrap(err, "stored comparison is corrupt")
	}
	strength, err := evidence.ParseStrength(row.Strength)
	if err != nil {
		return nil, errors.Wrap(err, "stored comparison is corrupt")
	}

	return &evidence.ComparisonRecord{
		ID:   row.ID,
		Run1: run1,
		Run2: run2,
		Comparison: evidence.Comparison{
			Ratio:    ratio,
			Space:    evidence.Space(row.Space),
			Favored:  favored,
			Strength: strength,
		},
		CreatedAt: row.CreatedAt,
	}, nil
}

func (row runRow) toRun() (*evidence.Run, error) {
	value, _, err := apd.NewFromString(row.Value)
	if err != nil {
		return nil, errors.Wrapf(err, "stored evidence %q is not a decimal", row.Value)
	}
	unit, err := evidence.ParseUnit(row.Unit)
	if err != nil {
		return nil, errors.Wrap(err, "stored evidence run is corrupt")
	}

	return &evidence.Run{
		ID: row.ID,
		Evidence: evidence.Evidence{
			Model:   row.Model,
			Value:   value,
			Unit:    unit,
			Samples: row.Samples,
			BurnIn:  row.BurnIn,
		},
		Precision: evidence.Precision{
			Digits:   uint32(row.PrecisionDigits),
			Rounding: row.Rounding,
		},
		CreatedAt: row.CreatedAt,
	}, nil
}
