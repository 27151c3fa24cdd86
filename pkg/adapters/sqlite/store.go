// Package sqlite provides a SQLite-backed design and locus store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/locus"
	"github.com/aretw0/ludics/pkg/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS loci (
	dialogue_id TEXT NOT NULL,
	path        TEXT NOT NULL,
	id          TEXT NOT NULL,
	parent_path TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (dialogue_id, path)
);

CREATE TABLE IF NOT EXISTS designs (
	id              TEXT PRIMARY KEY,
	deliberation_id TEXT NOT NULL DEFAULT '',
	participant_id  TEXT NOT NULL DEFAULT '',
	polarity        TEXT NOT NULL,
	root_locus_id   TEXT NOT NULL DEFAULT '',
	root_path       TEXT NOT NULL DEFAULT '0',
	has_daimon      INTEGER NOT NULL DEFAULT 0,
	semantics       TEXT NOT NULL DEFAULT '',
	version         INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS designs_by_deliberation ON designs (deliberation_id);

CREATE TABLE IF NOT EXISTS acts (
	design_id          TEXT NOT NULL REFERENCES designs (id) ON DELETE CASCADE,
	order_in_design    INTEGER NOT NULL,
	id                 TEXT NOT NULL,
	kind               TEXT NOT NULL,
	polarity           TEXT NOT NULL,
	locus_path         TEXT NOT NULL,
	ramification       TEXT NOT NULL DEFAULT '[]',
	expression         TEXT NOT NULL DEFAULT '',
	justified_by_locus TEXT NOT NULL DEFAULT '',
	meta               TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (design_id, order_in_design)
);
`

// Store persists designs and loci in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and creates its schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// EnsureLocus inserts the chain of loci, ignoring the ones already present.
func (s *Store) EnsureLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	chain, err := ports.LocusChain(path)
	if err != nil {
		return nil, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range chain {
		l := ports.NewLocus(dialogueID, p)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO loci (dialogue_id, path, id, parent_path, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (dialogue_id, path) DO NOTHING`,
			l.DialogueID, l.Path, l.ID, l.ParentPath, toMillis(l.CreatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEnsureLocusFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEnsureLocusFailed, err)
	}
	return s.GetLocus(ctx, dialogueID, chain[len(chain)-1])
}

// GetLocus reads one locus row.
func (s *Store) GetLocus(ctx context.Context, dialogueID, path string) (*domain.Locus, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, dialogue_id, path, parent_path, created_at FROM loci WHERE dialogue_id = ? AND path = ?`,
		dialogueID, locus.Normalize(path),
	)
	l, err := scanLocus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoSuchLocus
	}
	if err != nil {
		return nil, fmt.Errorf("get locus: %w", err)
	}
	return &l, nil
}

// ListLoci returns the dialogue's loci in canonical order.
func (s *Store) ListLoci(ctx context.Context, dialogueID string) ([]domain.Locus, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, dialogue_id, path, parent_path, created_at FROM loci WHERE dialogue_id = ?`,
		dialogueID,
	)
	if err != nil {
		return nil, fmt.Errorf("list loci: %w", err)
	}
	defer rows.Close()

	out := []domain.Locus{}
	for rows.Next() {
		l, err := scanLocus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locus: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list loci: %w", err)
	}
	slices.SortFunc(out, func(a, b domain.Locus) int { return locus.Compare(a.Path, b.Path) })
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLocus(row scanner) (domain.Locus, error) {
	var l domain.Locus
	var created int64
	if err := row.Scan(&l.ID, &l.DialogueID, &l.Path, &l.ParentPath, &created); err != nil {
		return domain.Locus{}, err
	}
	l.CreatedAt = fromMillis(created)
	return l, nil
}

// CreateDesign inserts the design row and its acts in one transaction.
func (s *Store) CreateDesign(ctx context.Context, d *domain.Design) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt, updatedAt := timestamps(d)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO designs (
		   id, deliberation_id, participant_id, polarity, root_locus_id, root_path,
		   has_daimon, semantics, version, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.DeliberationID, d.ParticipantID, string(d.Polarity), d.RootLocusID, d.Root(),
		d.HasDaimon, d.Semantics, d.Version, toMillis(createdAt), toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDesignExists
		}
		return fmt.Errorf("insert design: %w", err)
	}
	if err := insertActs(ctx, tx, d); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveDesign updates the design row and replaces its acts.
func (s *Store) SaveDesign(ctx context.Context, d *domain.Design) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, updatedAt := timestamps(d)
	res, err := tx.ExecContext(ctx,
		`UPDATE designs SET
		   deliberation_id = ?, participant_id = ?, polarity = ?, root_locus_id = ?, root_path = ?,
		   has_daimon = ?, semantics = ?, version = ?, updated_at = ?
		 WHERE id = ?`,
		d.DeliberationID, d.ParticipantID, string(d.Polarity), d.RootLocusID, d.Root(),
		d.HasDaimon, d.Semantics, d.Version, toMillis(updatedAt), d.ID,
	)
	if err != nil {
		return fmt.Errorf("update design: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update design: %w", err)
	} else if n == 0 {
		return domain.ErrNoSuchDesign
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM acts WHERE design_id = ?`, d.ID); err != nil {
		return fmt.Errorf("clear acts: %w", err)
	}
	if err := insertActs(ctx, tx, d); err != nil {
		return err
	}
	return tx.Commit()
}

func timestamps(d *domain.Design) (time.Time, time.Time) {
	createdAt, updatedAt := d.CreatedAt, d.UpdatedAt
	if createdAt.IsZero() && updatedAt.IsZero() {
		createdAt = time.Now().UTC()
		updatedAt = createdAt
	}
	if createdAt.IsZero() {
		createdAt = updatedAt
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return createdAt, updatedAt
}

func insertActs(ctx context.Context, tx *sql.Tx, d *domain.Design) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO acts (
		   design_id, order_in_design, id, kind, polarity, locus_path,
		   ramification, expression, justified_by_locus, meta
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare acts: %w", err)
	}
	defer stmt.Close()

	for _, a := range d.Acts {
		ram := a.Ramification
		if ram == nil {
			ram = []string{}
		}
		ramJSON, err := json.Marshal(ram)
		if err != nil {
			return fmt.Errorf("marshal ramification: %w", err)
		}
		meta := a.Meta
		if meta == nil {
			meta = map[string]string{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			d.ID, a.OrderInDesign, a.ID, string(a.Kind), string(a.Polarity), a.LocusPath,
			string(ramJSON), a.Expression, a.JustifiedByLocus, string(metaJSON),
		); err != nil {
			return fmt.Errorf("insert act %d: %w", a.OrderInDesign, err)
		}
	}
	return nil
}

// GetDesign loads the design row and its acts ordered by order_in_design.
func (s *Store) GetDesign(ctx context.Context, id string) (*domain.Design, error) {
	var d domain.Design
	var polarity string
	var created, updated int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, deliberation_id, participant_id, polarity, root_locus_id, root_path,
		        has_daimon, semantics, version, created_at, updated_at
		 FROM designs WHERE id = ?`, id,
	).Scan(&d.ID, &d.DeliberationID, &d.ParticipantID, &polarity, &d.RootLocusID, &d.RootPath,
		&d.HasDaimon, &d.Semantics, &d.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoSuchDesign
	}
	if err != nil {
		return nil, fmt.Errorf("get design: %w", err)
	}
	d.Polarity = domain.Polarity(polarity)
	d.CreatedAt, d.UpdatedAt = fromMillis(created), fromMillis(updated)

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, order_in_design, kind, polarity, locus_path, ramification, expression, justified_by_locus, meta
		 FROM acts WHERE design_id = ? ORDER BY order_in_design`, id)
	if err != nil {
		return nil, fmt.Errorf("get acts: %w", err)
	}
	defer rows.Close()

	d.Acts = []domain.Act{}
	for rows.Next() {
		a := domain.Act{DesignID: d.ID}
		var kind, pol, ramJSON, metaJSON string
		if err := rows.Scan(&a.ID, &a.OrderInDesign, &kind, &pol, &a.LocusPath, &ramJSON, &a.Expression, &a.JustifiedByLocus, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan act: %w", err)
		}
		a.Kind, a.Polarity = domain.ActKind(kind), domain.Polarity(pol)
		if err := json.Unmarshal([]byte(ramJSON), &a.Ramification); err != nil {
			return nil, fmt.Errorf("unmarshal ramification: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &a.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal meta: %w", err)
		}
		if len(a.Meta) == 0 {
			a.Meta = nil
		}
		d.Acts = append(d.Acts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get acts: %w", err)
	}
	return &d, nil
}

// DeleteDesign removes the design; its acts go with it.
func (s *Store) DeleteDesign(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM designs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete design: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNoSuchDesign
	}
	return nil
}

// ListDesigns returns design IDs, optionally filtered by dialogue.
func (s *Store) ListDesigns(ctx context.Context, dialogueID string) ([]string, error) {
	query := `SELECT id FROM designs ORDER BY id`
	args := []any{}
	if dialogueID != "" {
		query = `SELECT id FROM designs WHERE deliberation_id = ? ORDER BY id`
		args = append(args, dialogueID)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan design id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ ports.Store = (*Store)(nil)
