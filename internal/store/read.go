package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/formsync/internal/form"
)

// GroupInfo describes one stored field group.
type GroupInfo struct {
	Name   string
	Seq    int64
	Values form.Values
}

// GetValue returns the point value stored under key.
// Returns (nil, false, nil) when the key was never written.
func (s *Store) GetValue(ctx context.Context, key string) (form.Value, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM point_values WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get value %q: %w", key, err)
	}

	v, err := unmarshalValue(data)
	if err != nil {
		return nil, false, fmt.Errorf("get value %q: %w", key, err)
	}
	return v, true, nil
}

// GetString returns the point value under key when it is a non-empty String.
func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.GetValue(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	str, isStr := v.(form.String)
	if !isStr || str == "" {
		return "", false, nil
	}
	return string(str), true, nil
}

// Group returns the answers of a single group.
func (s *Store) Group(ctx context.Context, name string) (form.Values, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM field_groups WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get group %q: %w", name, err)
	}

	v, err := unmarshalValues(data)
	if err != nil {
		return nil, false, fmt.Errorf("get group %q: %w", name, err)
	}
	return v, true, nil
}

// Groups returns every stored group in write order.
//
// Returns an empty slice (not nil) if nothing was stored.
func (s *Store) Groups(ctx context.Context) ([]GroupInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, data, seq
		FROM field_groups
		ORDER BY seq ASC, name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	groups := []GroupInfo{}
	for rows.Next() {
		var (
			info GroupInfo
			data string
		)
		if err := rows.Scan(&info.Name, &data, &info.Seq); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		info.Values, err = unmarshalValues(data)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", info.Name, err)
		}
		groups = append(groups, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// Snapshot flattens every stored group into one mapping. Groups are
// applied in write order, so for a field defined by two groups the most
// recently written group wins. The result is built fresh on every call.
func (s *Store) Snapshot(ctx context.Context) (form.Values, error) {
	groups, err := s.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	snapshot := form.Values{}
	for _, g := range groups {
		snapshot.Merge(g.Values)
	}
	return snapshot, nil
}
