package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	calibration "gagetrack/internal/calibration/domain"
)

const (
	defaultGroupsTable       = "measurement_groups"
	defaultMeasurementsTable = "measurements"
)

// MeasurementRepository is a Postgres implementation for measurement groups
// and their points.
type MeasurementRepository struct {
	db                *sql.DB
	groupsTable       string
	measurementsTable string
}

// NewMeasurementRepository constructs a repository.
func NewMeasurementRepository(db *sql.DB) *MeasurementRepository {
	return &MeasurementRepository{
		db:                db,
		groupsTable:       defaultGroupsTable,
		measurementsTable: defaultMeasurementsTable,
	}
}

const groupColumns = `id, calibration_record_id, group_number, group_name,
	tolerance_type, plus_percent, plus, minus, mask_min, mask_max,
	units, notes,
	show_sequence, show_description, auto_fill_after, show_uncertainty, show_standards,
	created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (*calibration.MeasurementGroup, error) {
	var g calibration.MeasurementGroup
	var units, notes sql.NullString
	if err := row.Scan(
		&g.ID,
		&g.CalibrationRecordID,
		&g.GroupNumber,
		&g.GroupName,
		&g.Tolerance.Type,
		&g.Tolerance.PlusPercent,
		&g.Tolerance.Plus,
		&g.Tolerance.Minus,
		&g.Tolerance.MaskMin,
		&g.Tolerance.MaskMax,
		&units,
		&notes,
		&g.Display.ShowSequence,
		&g.Display.ShowDescription,
		&g.Display.AutoFillAfter,
		&g.Display.ShowUncertainty,
		&g.Display.ShowStandards,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.Units = units.String
	g.Notes = notes.String
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return &g, nil
}

// GetGroup loads a group with its measurements ordered by sequence.
func (r *MeasurementRepository) GetGroup(ctx context.Context, id string) (*calibration.MeasurementGroup, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	if id == "" {
		return nil, errors.New("measurement repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, groupColumns, r.groupsTable)

	group, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	measurements, err := r.listMeasurements(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	group.Measurements = measurements
	return group, nil
}

// ListGroupsByRecord loads all groups of a calibration record with their
// measurements, ordered by group number.
func (r *MeasurementRepository) ListGroupsByRecord(ctx context.Context, recordID string) ([]calibration.MeasurementGroup, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	if recordID == "" {
		return nil, errors.New("measurement repo: empty record id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE calibration_record_id = $1
ORDER BY group_number ASC, id ASC`, groupColumns, r.groupsTable)

	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calibration.MeasurementGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		measurements, err := r.listMeasurements(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Measurements = measurements
	}
	return out, nil
}

func (r *MeasurementRepository) listMeasurements(ctx context.Context, groupID string) ([]calibration.Measurement, error) {
	query := fmt.Sprintf(`
SELECT id, group_id, sequence, nominal, lower_limit, upper_limit,
	as_found_value, as_found_error, as_found_verdict,
	as_left_value, as_left_error, as_left_verdict,
	description, uncertainty, standards_used, created_at, updated_at
FROM %s
WHERE group_id = $1
ORDER BY sequence ASC, id ASC`, r.measurementsTable)

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calibration.Measurement
	for rows.Next() {
		var m calibration.Measurement
		var description, standards sql.NullString
		if err := rows.Scan(
			&m.ID,
			&m.GroupID,
			&m.Sequence,
			&m.Nominal,
			&m.LowerLimit,
			&m.UpperLimit,
			&m.AsFound.Value,
			&m.AsFound.Error,
			&m.AsFound.Verdict,
			&m.AsLeft.Value,
			&m.AsLeft.Error,
			&m.AsLeft.Verdict,
			&description,
			&m.Uncertainty,
			&standards,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		m.Description = description.String
		m.StandardsUsed = standards.String
		m.CreatedAt = m.CreatedAt.UTC()
		m.UpdatedAt = m.UpdatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveGroup upserts a group and replaces its measurements in one
// transaction.
func (r *MeasurementRepository) SaveGroup(ctx context.Context, group *calibration.MeasurementGroup) error {
	if r == nil || r.db == nil {
		return errors.New("measurement repo: nil db")
	}
	if group == nil {
		return errors.New("measurement repo: nil group")
	}
	if group.ID == "" || group.CalibrationRecordID == "" {
		return errors.New("measurement repo: missing ids")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	groupQuery := fmt.Sprintf(`
INSERT INTO %s (
	id, calibration_record_id, group_number, group_name,
	tolerance_type, plus_percent, plus, minus, mask_min, mask_max,
	units, notes,
	show_sequence, show_description, auto_fill_after, show_uncertainty, show_standards
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
)
ON CONFLICT (id)
DO UPDATE SET
	group_number = EXCLUDED.group_number,
	group_name = EXCLUDED.group_name,
	units = EXCLUDED.units,
	notes = EXCLUDED.notes,
	show_sequence = EXCLUDED.show_sequence,
	show_description = EXCLUDED.show_description,
	auto_fill_after = EXCLUDED.auto_fill_after,
	show_uncertainty = EXCLUDED.show_uncertainty,
	show_standards = EXCLUDED.show_standards,
	updated_at = NOW()`, r.groupsTable)

	if _, err := tx.ExecContext(
		ctx,
		groupQuery,
		group.ID,
		group.CalibrationRecordID,
		group.GroupNumber,
		group.GroupName,
		group.Tolerance.Type,
		group.Tolerance.PlusPercent,
		group.Tolerance.Plus,
		group.Tolerance.Minus,
		group.Tolerance.MaskMin,
		group.Tolerance.MaskMax,
		group.Units,
		group.Notes,
		group.Display.ShowSequence,
		group.Display.ShowDescription,
		group.Display.AutoFillAfter,
		group.Display.ShowUncertainty,
		group.Display.ShowStandards,
	); err != nil {
		return err
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE group_id = $1", r.measurementsTable)
	if _, err := tx.ExecContext(ctx, deleteQuery, group.ID); err != nil {
		return err
	}

	insertQuery := fmt.Sprintf(`
INSERT INTO %s (
	id, group_id, sequence, nominal, lower_limit, upper_limit,
	as_found_value, as_found_error, as_found_verdict,
	as_left_value, as_left_error, as_left_verdict,
	description, uncertainty, standards_used
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
)`, r.measurementsTable)

	for _, m := range group.Measurements {
		if _, err := tx.ExecContext(
			ctx,
			insertQuery,
			m.ID,
			group.ID,
			m.Sequence,
			m.Nominal,
			m.LowerLimit,
			m.UpperLimit,
			m.AsFound.Value,
			m.AsFound.Error,
			m.AsFound.Verdict,
			m.AsLeft.Value,
			m.AsLeft.Error,
			m.AsLeft.Verdict,
			m.Description,
			m.Uncertainty,
			m.StandardsUsed,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	return nil
}

// DeleteGroup removes a group; its measurements cascade.
func (r *MeasurementRepository) DeleteGroup(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("measurement repo: nil db")
	}
	if id == "" {
		return errors.New("measurement repo: empty id")
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.groupsTable)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return calibration.ErrNotFound
	}
	return nil
}
