package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Postgres keeps each record as a JSONB document next to its key columns.
type Postgres struct {
	db         *sql.DB
	accounts   *pgCollection[Account]
	groups     *pgCollection[Group]
	activities *pgCollection[Activity]
	entries    *pgCollection[MoodEntry]
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:         db,
		accounts:   &pgCollection[Account]{db: db, table: accountsCollection},
		groups:     &pgCollection[Group]{db: db, table: groupsCollection},
		activities: &pgCollection[Activity]{db: db, table: activitiesCollection},
		entries:    &pgCollection[MoodEntry]{db: db, table: entriesCollection},
	}
}

func (p *Postgres) DB() *sql.DB { return p.db }

func (p *Postgres) Accounts() Collection[Account]      { return p.accounts }
func (p *Postgres) Groups() Collection[Group]          { return p.groups }
func (p *Postgres) Activities() Collection[Activity]   { return p.activities }
func (p *Postgres) MoodEntries() Collection[MoodEntry] { return p.entries }

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close(context.Context) error {
	return p.db.Close()
}

type pgCollection[T Record] struct {
	db    *sql.DB
	table string
}

func (c *pgCollection[T]) Find(ctx context.Context, filter Filter) ([]T, error) {
	where, args := pgWhere(filter)
	rows, err := c.db.QueryContext(ctx, `SELECT doc FROM `+c.table+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.table, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.table, err)
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.table, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.table, err)
	}
	return out, nil
}

func (c *pgCollection[T]) InsertMany(ctx context.Context, docs []T) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert %s: %w", c.table, err)
	}
	defer tx.Rollback()

	query := `INSERT INTO ` + c.table + ` (id, account_id, group_id, day, email, activity_ids, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, doc := range docs {
		keys := doc.Keys()
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.table, err)
		}
		if _, err := tx.ExecContext(ctx, query,
			keys.ID, keys.AccountID, keys.GroupID, keys.Day, keys.Email, nonNil(keys.ActivityIDs), raw,
		); err != nil {
			return c.wrapWriteError("insert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return c.wrapWriteError("commit insert", err)
	}
	return nil
}

func (c *pgCollection[T]) ReplaceMany(ctx context.Context, docs []T) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace %s: %w", c.table, err)
	}
	defer tx.Rollback()

	query := `UPDATE ` + c.table + `
		SET group_id = $3, day = $4, email = $5, activity_ids = $6, doc = $7
		WHERE id = $1 AND account_id = $2`
	var matched int64
	for _, doc := range docs {
		keys := doc.Keys()
		raw, err := json.Marshal(doc)
		if err != nil {
			return 0, fmt.Errorf("encode %s: %w", c.table, err)
		}
		result, err := tx.ExecContext(ctx, query,
			keys.ID, keys.AccountID, keys.GroupID, keys.Day, keys.Email, nonNil(keys.ActivityIDs), raw,
		)
		if err != nil {
			return 0, c.wrapWriteError("replace", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("replace %s rows affected: %w", c.table, err)
		}
		matched += n
	}
	if err := tx.Commit(); err != nil {
		return 0, c.wrapWriteError("commit replace", err)
	}
	return matched, nil
}

func (c *pgCollection[T]) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	if filter.IsZero() {
		return 0, ErrUnscopedDelete
	}
	where, args := pgWhere(filter)
	result, err := c.db.ExecContext(ctx, `DELETE FROM `+c.table+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s rows affected: %w", c.table, err)
	}
	return n, nil
}

func (c *pgCollection[T]) wrapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s %s: %w: %s", op, c.table, ErrDuplicateKey, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s %s: %w", op, c.table, err)
}

func pgWhere(f Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.IDs != nil {
		add("id = ANY($%d::text[])", f.IDs)
	}
	if f.AccountID != "" {
		add("account_id = $%d", f.AccountID)
	}
	if f.GroupIDs != nil {
		add("group_id = ANY($%d::text[])", f.GroupIDs)
	}
	if f.ActivityIDs != nil {
		add("activity_ids && $%d::text[]", f.ActivityIDs)
	}
	if f.Email != "" {
		add("email = $%d", f.Email)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
