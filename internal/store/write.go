package store

import (
	"context"
	"fmt"

	"github.com/roach88/formsync/internal/form"
)

// SetGroup stores values under name, replacing any previous value for
// that group. The group is stamped with the next write seq, so it wins
// over every earlier group in Snapshot.
//
// The write runs in one transaction. On failure it returns
// *StorageWriteError and the previous value of the group stays intact.
func (s *Store) SetGroup(ctx context.Context, name string, values form.Values) error {
	if name == "" {
		return &StorageWriteError{Op: OpSetGroup, Err: fmt.Errorf("group name is empty")}
	}

	data, err := marshalValues(values)
	if err != nil {
		return &StorageWriteError{Op: OpSetGroup, Key: name, Err: err}
	}

	if err := s.setGroupTx(ctx, name, data); err != nil {
		return &StorageWriteError{Op: OpSetGroup, Key: name, Err: err}
	}
	return nil
}

func (s *Store) setGroupTx(ctx context.Context, name, data string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM field_groups`).Scan(&seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO field_groups (name, data, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, seq = excluded.seq
	`, name, data, seq)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SetValue stores a single point value under key, replacing any
// previous value. Point values never appear in Snapshot.
func (s *Store) SetValue(ctx context.Context, key string, value form.Value) error {
	if key == "" {
		return &StorageWriteError{Op: OpSetValue, Err: fmt.Errorf("key is empty")}
	}

	data, err := marshalValue(value)
	if err != nil {
		return &StorageWriteError{Op: OpSetValue, Key: key, Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO point_values (key, data)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data
	`, key, data)
	if err != nil {
		return &StorageWriteError{Op: OpSetValue, Key: key, Err: err}
	}
	return nil
}

// Reset deletes every field group and point value, including the form
// identifier. It backs the "restart questionnaire" path.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageWriteError{Op: OpReset, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM field_groups`, `DELETE FROM point_values`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &StorageWriteError{Op: OpReset, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageWriteError{Op: OpReset, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}
