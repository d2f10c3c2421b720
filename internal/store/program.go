package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/programhub/apiserver/internal/db"
	"github.com/programhub/apiserver/types"
)

const programColumns = "id, slug, is_active, program, schedule, participants, location, program_features, created_at, updated_at"

// activationLockKey identifies the transaction-scoped advisory lock that
// serializes every write able to change which program is active.
const activationLockKey int64 = 0x70726f67

// ProgramRepository handles persistence for program settings. Writes that
// may change the active record run in a transaction holding the
// activation lock; the partial unique index program_settings_single_active
// rejects anything that slips past it.
type ProgramRepository struct {
	db *sql.DB
}

func NewProgramRepository(db *sql.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns every program setting, newest first.
func (r *ProgramRepository) List(ctx context.Context) ([]types.ProgramSetting, error) {
	query, args, err := psql.Select(programColumns).
		From("program_settings").
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	programs := make([]types.ProgramSetting, 0)
	for rows.Next() {
		program, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, program)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return programs, nil
}

func (r *ProgramRepository) Get(ctx context.Context, id uuid.UUID) (types.ProgramSetting, error) {
	return r.getOne(ctx, `SELECT `+programColumns+` FROM program_settings WHERE id = $1`, id)
}

func (r *ProgramRepository) GetBySlug(ctx context.Context, slug string) (types.ProgramSetting, error) {
	return r.getOne(ctx, `SELECT `+programColumns+` FROM program_settings WHERE slug = $1`, slug)
}

// GetActive returns the active program setting.
func (r *ProgramRepository) GetActive(ctx context.Context) (types.ProgramSetting, error) {
	return r.getOne(ctx, `SELECT `+programColumns+` FROM program_settings WHERE is_active LIMIT 1`)
}

// Create inserts program. When it is created active, the previously active
// record is deactivated in the same transaction and returned.
func (r *ProgramRepository) Create(ctx context.Context, program types.ProgramSetting) (types.ProgramSetting, *types.ProgramSetting, error) {
	if program.ID == uuid.Nil {
		program.ID = uuid.New()
	}
	now := time.Now()
	program.CreatedAt = now
	program.UpdatedAt = now

	sections, err := marshalSections(program)
	if err != nil {
		return types.ProgramSetting{}, nil, err
	}

	var previous *types.ProgramSetting
	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if program.IsActive {
			if err := lockActivation(ctx, tx); err != nil {
				return err
			}
			prev, err := deactivateOthers(ctx, tx, program.ID, now)
			if err != nil {
				return err
			}
			previous = prev
		}

		const query = `
			INSERT INTO program_settings (` + programColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		_, err := tx.ExecContext(
			ctx,
			query,
			program.ID,
			program.Slug,
			program.IsActive,
			sections.program,
			sections.schedule,
			sections.participants,
			sections.location,
			sections.features,
			program.CreatedAt,
			program.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return types.ProgramSetting{}, nil, translateError(err)
	}
	return program, previous, nil
}

// Update locks the program with id, lets mutate change it and writes the
// result back. The row is read under the activation lock so a concurrent
// activation can neither be overwritten nor resurrect a stale active flag.
// When the record becomes active, the previously active record is
// deactivated in the same transaction and returned.
func (r *ProgramRepository) Update(ctx context.Context, id uuid.UUID, mutate func(*types.ProgramSetting) error) (types.ProgramUpdate, error) {
	var result types.ProgramUpdate
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockActivation(ctx, tx); err != nil {
			return err
		}

		program, err := scanProgram(tx.QueryRowContext(ctx,
			`SELECT `+programColumns+` FROM program_settings WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		result.WasActive = program.IsActive

		if err := mutate(&program); err != nil {
			return err
		}
		program.ID = id
		program.UpdatedAt = time.Now()

		if program.IsActive && !result.WasActive {
			previous, err := deactivateOthers(ctx, tx, id, program.UpdatedAt)
			if err != nil {
				return err
			}
			result.Previous = previous
		}

		sections, err := marshalSections(program)
		if err != nil {
			return err
		}

		const query = `
			UPDATE program_settings
			SET slug = $1,
				is_active = $2,
				program = $3,
				schedule = $4,
				participants = $5,
				location = $6,
				program_features = $7,
				updated_at = $8
			WHERE id = $9`
		_, err = tx.ExecContext(
			ctx,
			query,
			program.Slug,
			program.IsActive,
			sections.program,
			sections.schedule,
			sections.participants,
			sections.location,
			sections.features,
			program.UpdatedAt,
			program.ID,
		)
		if err != nil {
			return err
		}
		result.Program = program
		return nil
	})
	if err != nil {
		return types.ProgramUpdate{}, translateError(err)
	}
	return result, nil
}

// Activate makes the program with id the only active one. Deactivating the
// former active record and activating the target happen in one
// transaction under the activation lock.
func (r *ProgramRepository) Activate(ctx context.Context, id uuid.UUID) (types.Activation, error) {
	var result types.Activation
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockActivation(ctx, tx); err != nil {
			return err
		}

		target, err := scanProgram(tx.QueryRowContext(ctx,
			`SELECT `+programColumns+` FROM program_settings WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if target.IsActive {
			result = types.Activation{Program: target, AlreadyActive: true}
			return nil
		}

		now := time.Now()
		previous, err := deactivateOthers(ctx, tx, id, now)
		if err != nil {
			return err
		}

		activated, err := scanProgram(tx.QueryRowContext(ctx, `
			UPDATE program_settings
			SET is_active = TRUE, updated_at = $2
			WHERE id = $1
			RETURNING `+programColumns, id, now))
		if err != nil {
			return err
		}

		result = types.Activation{Program: activated, Previous: previous}
		return nil
	})
	if err != nil {
		return types.Activation{}, translateError(err)
	}
	return result, nil
}

// Delete removes the program with id. If it was active, the most recently
// created remaining record is promoted in the same transaction.
func (r *ProgramRepository) Delete(ctx context.Context, id uuid.UUID) (types.Removal, error) {
	var result types.Removal
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockActivation(ctx, tx); err != nil {
			return err
		}

		deleted, err := scanProgram(tx.QueryRowContext(ctx,
			`DELETE FROM program_settings WHERE id = $1 RETURNING `+programColumns, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		result.Program = deleted
		if !deleted.IsActive {
			return nil
		}

		promoted, err := scanProgram(tx.QueryRowContext(ctx, `
			UPDATE program_settings
			SET is_active = TRUE, updated_at = $1
			WHERE id = (
				SELECT id FROM program_settings
				ORDER BY created_at DESC, id DESC
				LIMIT 1
			)
			RETURNING `+programColumns, time.Now()))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		result.Promoted = &promoted
		return nil
	})
	if err != nil {
		return types.Removal{}, translateError(err)
	}
	return result, nil
}

func (r *ProgramRepository) getOne(ctx context.Context, query string, args ...any) (types.ProgramSetting, error) {
	program, err := scanProgram(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ProgramSetting{}, ErrNotFound
		}
		return types.ProgramSetting{}, err
	}
	return program, nil
}

func lockActivation(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, activationLockKey)
	return err
}

func deactivateOthers(ctx context.Context, tx *sql.Tx, keepID uuid.UUID, now time.Time) (*types.ProgramSetting, error) {
	previous, err := scanProgram(tx.QueryRowContext(ctx, `
		UPDATE program_settings
		SET is_active = FALSE, updated_at = $2
		WHERE is_active AND id <> $1
		RETURNING `+programColumns, keepID, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &previous, nil
}

type programSections struct {
	program      []byte
	schedule     []byte
	participants []byte
	location     []byte
	features     []byte
}

func marshalSections(program types.ProgramSetting) (programSections, error) {
	var (
		sections programSections
		err      error
	)
	if sections.program, err = json.Marshal(program.Program); err != nil {
		return programSections{}, err
	}
	if sections.schedule, err = json.Marshal(program.Schedule); err != nil {
		return programSections{}, err
	}
	if sections.participants, err = json.Marshal(program.Participants); err != nil {
		return programSections{}, err
	}
	if sections.location, err = json.Marshal(program.Location); err != nil {
		return programSections{}, err
	}
	if sections.features, err = json.Marshal(program.ProgramFeatures); err != nil {
		return programSections{}, err
	}
	return sections, nil
}

func scanProgram(row rowScanner) (types.ProgramSetting, error) {
	var program types.ProgramSetting
	var programJSON, scheduleJSON, participantsJSON, locationJSON, featuresJSON []byte
	if err := row.Scan(
		&program.ID,
		&program.Slug,
		&program.IsActive,
		&programJSON,
		&scheduleJSON,
		&participantsJSON,
		&locationJSON,
		&featuresJSON,
		&program.CreatedAt,
		&program.UpdatedAt,
	); err != nil {
		return types.ProgramSetting{}, err
	}

	_ = json.Unmarshal(programJSON, &program.Program)
	_ = json.Unmarshal(scheduleJSON, &program.Schedule)
	_ = json.Unmarshal(participantsJSON, &program.Participants)
	_ = json.Unmarshal(locationJSON, &program.Location)
	_ = json.Unmarshal(featuresJSON, &program.ProgramFeatures)
	return program, nil
}
