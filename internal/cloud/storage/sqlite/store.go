package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/morius-data/instance.report/internal/cloud"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRefNotFound reports a point-set reference with no backing instance
// row. Callers surface it as missing metadata, not as a quality failure.
var ErrRefNotFound = errors.New("point-set reference not found")

// unionNamespace seeds deterministic union refs, so re-running a merge
// over the same constituents reuses the already-materialized union.
var unionNamespace = uuid.MustParse("5d3c1b06-9e51-4c8a-a0d3-42c6f0a77a1d")

// Store is the SQLite-backed point store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the store at path and applies any
// pending schema migrations. Use ":memory:" for an in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	// Note: we don't close m because it would close the underlying DB
	// connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertClassPoints appends raw classified points to a (chunk, class)
// group for later clustering.
func (s *Store) InsertClassPoints(ctx context.Context, chunkID, className string, points []cloud.Point) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO class_points (chunk_id, class_name, x, y, z) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, chunkID, className, p.X, p.Y, p.Z); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClassPoints returns the raw classified points of one (chunk, class)
// group in insertion order.
func (s *Store) ClassPoints(ctx context.Context, chunkID, className string) ([]cloud.Point, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT x, y, z FROM class_points WHERE chunk_id = ? AND class_name = ? ORDER BY rowid`,
		chunkID, className)
	if err != nil {
		return nil, fmt.Errorf("failed to query class points: %w", err)
	}
	defer rows.Close()

	var points []cloud.Point
	for rows.Next() {
		var p cloud.Point
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// ClassPointGroups enumerates the (chunk, class) groups that hold raw
// classified points.
func (s *Store) ClassPointGroups(ctx context.Context) ([]cloud.Group, error) {
	return s.queryGroups(ctx,
		`SELECT DISTINCT chunk_id, class_name FROM class_points ORDER BY chunk_id, class_name`)
}

// InstanceGroups enumerates the (chunk, class) groups that hold
// clustered instances.
func (s *Store) InstanceGroups(ctx context.Context) ([]cloud.Group, error) {
	return s.queryGroups(ctx,
		`SELECT DISTINCT chunk_id, class_name FROM instances WHERE origin = 'clustered' ORDER BY chunk_id, class_name`)
}

func (s *Store) queryGroups(ctx context.Context, query string) ([]cloud.Group, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate groups: %w", err)
	}
	defer rows.Close()

	var groups []cloud.Group
	for rows.Next() {
		var g cloud.Group
		if err := rows.Scan(&g.ChunkID, &g.ClassName); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// InsertInstance stores one clustered point subset and returns its ref.
// The subset's seq within the group is the next cluster ordinal, which
// preserves original cluster order for output numbering.
func (s *Store) InsertInstance(ctx context.Context, chunkID, className string, points []cloud.Point) (string, error) {
	if len(points) == 0 {
		return "", cloud.ErrEmptyInstance
	}

	ref := uuid.New().String()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var seq int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), -1) + 1 FROM instances WHERE chunk_id = ? AND class_name = ? AND origin = 'clustered'`,
			chunkID, className).Scan(&seq)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO instances (ref, chunk_id, class_name, origin, seq, point_count, created_unix_nanos)
			 VALUES (?, ?, ?, 'clustered', ?, ?, ?)`,
			ref, chunkID, className, seq, len(points), time.Now().UnixNano())
		if err != nil {
			return err
		}

		return insertPoints(ctx, tx, ref, points)
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert instance: %w", err)
	}
	return ref, nil
}

func insertPoints(ctx context.Context, tx *sql.Tx, ref string, points []cloud.Point) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO instance_points (ref, x, y, z) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, ref, p.X, p.Y, p.Z); err != nil {
			return err
		}
	}
	return nil
}

// InstanceRefs returns the clustered instance refs of one group in
// original cluster order. Union-materialized refs are excluded; they
// only exist as merge results.
func (s *Store) InstanceRefs(ctx context.Context, chunkID, className string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ref FROM instances WHERE chunk_id = ? AND class_name = ? AND origin = 'clustered' ORDER BY seq`,
		chunkID, className)
	if err != nil {
		return nil, fmt.Errorf("failed to query instance refs: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ReadInstancePoints returns the point subset behind ref. A ref with no
// instance row returns ErrRefNotFound.
func (s *Store) ReadInstancePoints(ctx context.Context, ref string) ([]cloud.Point, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT point_count FROM instances WHERE ref = ?`, ref).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ref %s: %w", ref, ErrRefNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up ref %s: %w", ref, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT x, y, z FROM instance_points WHERE ref = ? ORDER BY rowid`, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read points for %s: %w", ref, err)
	}
	defer rows.Close()

	points := make([]cloud.Point, 0, count)
	for rows.Next() {
		var p cloud.Point
		if err := rows.Scan(&p.X, &p.Y, &p.Z); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// UnionPoints materializes the union of two point subsets and returns
// the ref of the combined set. The union ref is derived
// deterministically from the constituent refs, so repeating the same
// merge reuses the existing row instead of duplicating points.
func (s *Store) UnionPoints(ctx context.Context, refA, refB string) (string, error) {
	unionRef := uuid.NewSHA1(unionNamespace, []byte(refA+"|"+refB)).String()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM instances WHERE ref = ?`, unionRef).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return nil // already materialized by a previous run
		}

		var chunkID, className string
		var countA int
		err = tx.QueryRowContext(ctx,
			`SELECT chunk_id, class_name, point_count FROM instances WHERE ref = ?`, refA).
			Scan(&chunkID, &className, &countA)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("ref %s: %w", refA, ErrRefNotFound)
		}
		if err != nil {
			return err
		}

		var countB int
		err = tx.QueryRowContext(ctx,
			`SELECT point_count FROM instances WHERE ref = ?`, refB).Scan(&countB)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("ref %s: %w", refB, ErrRefNotFound)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO instances (ref, chunk_id, class_name, origin, seq, point_count, created_unix_nanos)
			 VALUES (?, ?, ?, 'union', -1, ?, ?)`,
			unionRef, chunkID, className, countA+countB, time.Now().UnixNano())
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO instance_points (ref, x, y, z)
			 SELECT ?, x, y, z FROM instance_points WHERE ref IN (?, ?)`,
			unionRef, refA, refB)
		return err
	})
	if err != nil {
		return "", err
	}
	return unionRef, nil
}

// ClearFinal removes a group's previously published instance set. Units
// call this before republishing so reruns rewrite rather than append.
func (s *Store) ClearFinal(ctx context.Context, chunkID, className string) error {
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM final_instances WHERE chunk_id = ? AND class_name = ?`,
			chunkID, className)
		return err
	})
}

// WriteInstance publishes one accepted instance under its final
// sequential id within the (chunk, class) destination.
func (s *Store) WriteInstance(ctx context.Context, ref, chunkID, className, instanceID string) error {
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO final_instances (chunk_id, class_name, instance_id, ref, origin, point_count, written_unix_nanos)
			 SELECT ?, ?, ?, ref, origin, point_count, ? FROM instances WHERE ref = ?`,
			chunkID, className, instanceID, time.Now().UnixNano(), ref)
		if err != nil {
			return err
		}
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM final_instances WHERE chunk_id = ? AND class_name = ? AND instance_id = ?`,
			chunkID, className, instanceID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("ref %s: %w", ref, ErrRefNotFound)
		}
		return nil
	})
}

// FinalInstanceIDs returns the published instance ids for one group in
// id order.
func (s *Store) FinalInstanceIDs(ctx context.Context, chunkID, className string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instance_id FROM final_instances WHERE chunk_id = ? AND class_name = ? ORDER BY instance_id`,
		chunkID, className)
	if err != nil {
		return nil, fmt.Errorf("failed to query final instances: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// inTx runs fn inside a transaction with busy retry.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
