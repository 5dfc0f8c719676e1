package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ghrcdaac/granuledb/internal/granule"
	"github.com/ghrcdaac/granuledb/internal/logging"
)

const (
	tableGranules = "granules"

	// SQLite caps bound variables per statement; stay well below it.
	namesPerQuery = 500
	rowsPerInsert = 200
)

const upsertSuffix = `ON CONFLICT(name) DO UPDATE SET
	etag = excluded.etag,
	last_modified = excluded.last_modified,
	recorded_at = excluded.recorded_at`

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func chunk(names []string, size int) [][]string {
	var out [][]string
	for len(names) > size {
		out = append(out, names[:size])
		names = names[size:]
	}
	if len(names) > 0 {
		out = append(out, names)
	}
	return out
}

// fetchFingerprints returns the persisted fingerprint for every name that has a record.
func fetchFingerprints(ctx context.Context, q queryer, names []string) (map[string]granule.Fingerprint, error) {
	found := make(map[string]granule.Fingerprint, len(names))
	for _, part := range chunk(names, namesPerQuery) {
		query, args, err := sq.Select("name", "etag", "last_modified").
			From(tableGranules).
			Where(sq.Eq{"name": part}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build select: %w", err)
		}
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query granules: %w", err)
		}
		for rows.Next() {
			var name string
			var fp granule.Fingerprint
			if err := rows.Scan(&name, &fp.ETag, &fp.LastModified); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan granule: %w", err)
			}
			found[name] = fp
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("iterate granules: %w", err)
		}
		_ = rows.Close()
	}
	return found, nil
}

func writeBatch(ctx context.Context, q queryer, batch granule.Batch, upsert bool) (int, error) {
	now := time.Now().UTC()
	names := batch.Names()
	written := 0
	for _, part := range chunk(names, rowsPerInsert) {
		builder := sq.Insert(tableGranules).Columns("name", "etag", "last_modified", "recorded_at")
		for _, name := range part {
			fp := batch[name]
			builder = builder.Values(name, fp.ETag, fp.LastModified, now)
		}
		if upsert {
			builder = builder.Suffix(upsertSuffix)
		}
		query, args, err := builder.ToSql()
		if err != nil {
			return written, fmt.Errorf("build insert: %w", err)
		}
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("insert granules: %w", err)
		}
		written += len(part)
	}
	return written, nil
}

// InsertMany inserts every granule in batch as a new record and returns
// len(batch). Callers must make sure none of the names exist yet; a collision
// fails the whole call with the primary key constraint error.
func (s *SQLiteStore) InsertMany(ctx context.Context, batch granule.Batch) (int, error) {
	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		count, err = writeBatch(ctx, tx, batch, false)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Classify records new and changed granules and reports the outcome per name.
// Unchanged granules are left untouched.
func (s *SQLiteStore) Classify(ctx context.Context, batch granule.Batch) (Classification, error) {
	var result Classification
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		names := batch.Names()
		existing, err := fetchFingerprints(ctx, tx, names)
		if err != nil {
			return err
		}

		fresh := granule.Batch{}
		changed := granule.Batch{}
		for _, name := range names {
			fp := batch[name]
			prev, ok := existing[name]
			switch {
			case !ok:
				fresh[name] = fp
				result.New = append(result.New, name)
			case !prev.Equal(fp):
				changed[name] = fp
				result.Changed = append(result.Changed, name)
			default:
				result.Unchanged = append(result.Unchanged, name)
			}
		}

		if _, err := writeBatch(ctx, tx, fresh, false); err != nil {
			return err
		}
		if _, err := writeBatch(ctx, tx, changed, true); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Classification{}, err
	}

	s.log().Info("discovery batch classified",
		logging.String(logging.FieldEventType, "classify_complete"),
		logging.Int("batch_size", len(batch)),
		logging.Int("new", len(result.New)),
		logging.Int("changed", len(result.Changed)),
		logging.Int("unchanged", len(result.Unchanged)))
	return result, nil
}

// ClassifyAndRecord is Classify reduced to the number of new plus changed granules.
func (s *SQLiteStore) ClassifyAndRecord(ctx context.Context, batch granule.Batch) (int, error) {
	result, err := s.Classify(ctx, batch)
	if err != nil {
		return 0, err
	}
	return result.Count(), nil
}

// InsertOrFail inserts the batch only if none of its names are on record.
// Otherwise it returns a *DuplicateGranuleError naming every offender and
// commits nothing.
func (s *SQLiteStore) InsertOrFail(ctx context.Context, batch granule.Batch) (int, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := fetchFingerprints(ctx, tx, batch.Names())
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			dups := make([]string, 0, len(existing))
			for name := range existing {
				dups = append(dups, name)
			}
			sort.Strings(dups)
			return &DuplicateGranuleError{Names: dups}
		}
		_, err = writeBatch(ctx, tx, batch, false)
		return err
	})
	if err != nil {
		var dup *DuplicateGranuleError
		if errors.As(err, &dup) {
			logging.WarnWithContext(s.log(), "duplicate granules rejected", "duplicate_granule",
				logging.Int("batch_size", len(batch)),
				logging.Int("duplicates", len(dup.Names)),
				logging.String(logging.FieldErrorHint, "the discovery feed re-reported names already on record"),
				logging.String(logging.FieldImpact, "no granules from this batch were recorded"))
		}
		return 0, err
	}
	return len(batch), nil
}

// Replace overwrites the fingerprint for every name in batch, inserting
// records that do not exist yet.
func (s *SQLiteStore) Replace(ctx context.Context, batch granule.Batch) (int, error) {
	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		count, err = writeBatch(ctx, tx, batch, true)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log().Info("granules replaced",
		logging.String(logging.FieldEventType, "replace_complete"),
		logging.Int("count", count))
	return count, nil
}

// DeleteByNames removes the named records and returns how many existed.
func (s *SQLiteStore) DeleteByNames(ctx context.Context, names []string) (int, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, part := range chunk(names, namesPerQuery) {
			query, args, err := sq.Delete(tableGranules).Where(sq.Eq{"name": part}).ToSql()
			if err != nil {
				return fmt.Errorf("build delete: %w", err)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("delete granules: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log().Info("granules deleted",
		logging.String(logging.FieldEventType, "delete_complete"),
		logging.Int("requested", len(names)),
		logging.Int64("removed", removed))
	return int(removed), nil
}

// SelectMatching returns the names in batch that have a persisted record,
// sorted by name.
func (s *SQLiteStore) SelectMatching(ctx context.Context, batch granule.Batch) ([]string, error) {
	var names []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := fetchFingerprints(ctx, tx, batch.Names())
		if err != nil {
			return err
		}
		names = make([]string, 0, len(existing))
		for name := range existing {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of persisted records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := sq.Select("COUNT(*)").From(tableGranules).ToSql()
		if err != nil {
			return fmt.Errorf("build count: %w", err)
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return fmt.Errorf("count granules: %w", err)
		}
		return nil
	})
	return count, err
}

// List returns persisted records ordered by name.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]granule.Granule, error) {
	if limit <= 0 {
		limit = DefaultLimit
	} else if limit > MaxLimit {
		limit = MaxLimit
	}

	var granules []granule.Granule
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := sq.Select("name", "etag", "last_modified").
			From(tableGranules).
			OrderBy("name").
			Limit(uint64(limit)).
			ToSql()
		if err != nil {
			return fmt.Errorf("build list: %w", err)
		}
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list granules: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var g granule.Granule
			if err := rows.Scan(&g.Name, &g.Fingerprint.ETag, &g.Fingerprint.LastModified); err != nil {
				return fmt.Errorf("scan granule: %w", err)
			}
			granules = append(granules, g)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return granules, nil
}
