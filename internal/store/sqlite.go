package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		Events: &sqlRepo[*Event]{db: db, t: eventTable, now: time.Now},
		Lists:  &sqlRepo[*List]{db: db, t: listTable, now: time.Now},
		Items:  &sqlRepo[*Item]{db: db, t: itemTable, now: time.Now},
		closer: db.Close,
	}, nil
}

func initSchema(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			start_time INTEGER,
			end_time INTEGER,
			location TEXT,
			calendar_id TEXT,
			owner_id TEXT,
			list_id TEXT,
			created_at INTEGER,
			updated_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS lists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			owner_id TEXT,
			event_id TEXT,
			created_at INTEGER,
			updated_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			list_id TEXT,
			content TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			due_date INTEGER,
			created_at INTEGER,
			updated_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time);`,
		`CREATE INDEX IF NOT EXISTS idx_items_list ON items(list_id);`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// table describes how one entity maps onto its SQL table.
type table[T any] struct {
	name    string
	columns []string
	fields  map[string]string
	order   string
	values  func(T) []any
	scan    func(scanner) (T, error)
}

var eventTable = table[*Event]{
	name:    "events",
	columns: []string{"id", "title", "description", "start_time", "end_time", "location", "calendar_id", "owner_id", "list_id", "created_at", "updated_at"},
	fields: map[string]string{
		"id": "id", "title": "title", "description": "description",
		"startTime": "start_time", "endTime": "end_time", "location": "location",
		"calendarId": "calendar_id", "ownerId": "owner_id", "listId": "list_id",
		"createdAt": "created_at",
	},
	order: "start_time ASC",
	values: func(e *Event) []any {
		return []any{e.ID, e.Title, e.Description, toNanos(e.StartTime), toNanos(e.EndTime), e.Location,
			e.CalendarID, e.OwnerID, e.ListID, toNanos(e.CreatedAt), toNanos(e.UpdatedAt)}
	},
	scan: func(s scanner) (*Event, error) {
		var e Event
		var start, end, created, updated int64
		if err := s.Scan(&e.ID, &e.Title, &e.Description, &start, &end, &e.Location,
			&e.CalendarID, &e.OwnerID, &e.ListID, &created, &updated); err != nil {
			return nil, err
		}
		e.StartTime, e.EndTime = fromNanos(start), fromNanos(end)
		e.CreatedAt, e.UpdatedAt = fromNanos(created), fromNanos(updated)
		return &e, nil
	},
}

var listTable = table[*List]{
	name:    "lists",
	columns: []string{"id", "name", "description", "owner_id", "event_id", "created_at", "updated_at"},
	fields: map[string]string{
		"id": "id", "name": "name", "description": "description",
		"ownerId": "owner_id", "eventId": "event_id", "createdAt": "created_at",
	},
	order: "name ASC",
	values: func(l *List) []any {
		return []any{l.ID, l.Name, l.Description, l.OwnerID, l.EventID, toNanos(l.CreatedAt), toNanos(l.UpdatedAt)}
	},
	scan: func(s scanner) (*List, error) {
		var l List
		var created, updated int64
		if err := s.Scan(&l.ID, &l.Name, &l.Description, &l.OwnerID, &l.EventID, &created, &updated); err != nil {
			return nil, err
		}
		l.CreatedAt, l.UpdatedAt = fromNanos(created), fromNanos(updated)
		return &l, nil
	},
}

var itemTable = table[*Item]{
	name:    "items",
	columns: []string{"id", "list_id", "content", "completed", "due_date", "created_at", "updated_at"},
	fields: map[string]string{
		"id": "id", "listId": "list_id", "content": "content",
		"completed": "completed", "dueDate": "due_date", "createdAt": "created_at",
	},
	order: "created_at ASC",
	values: func(i *Item) []any {
		return []any{i.ID, i.ListID, i.Content, boolToInt(i.Completed), toNanos(i.DueDate), toNanos(i.CreatedAt), toNanos(i.UpdatedAt)}
	},
	scan: func(s scanner) (*Item, error) {
		var i Item
		var completed, due, created, updated int64
		if err := s.Scan(&i.ID, &i.ListID, &i.Content, &completed, &due, &created, &updated); err != nil {
			return nil, err
		}
		i.Completed = completed != 0
		i.DueDate = fromNanos(due)
		i.CreatedAt, i.UpdatedAt = fromNanos(created), fromNanos(updated)
		return &i, nil
	},
}

type sqlRepo[T Entity[T]] struct {
	db  *sql.DB
	t   table[T]
	now func() time.Time
}

func (r *sqlRepo[T]) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(r.t.columns, ", "), r.t.name)
}

func (r *sqlRepo[T]) Create(ctx context.Context, rec T) (T, error) {
	c := rec.Clone()
	if c.GetID() == "" {
		c.SetID(NewID())
	}
	c.Touch(r.now().UTC())

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(r.t.columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.t.name, strings.Join(r.t.columns, ", "), placeholders)
	if _, err := r.db.ExecContext(ctx, query, r.t.values(c)...); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to insert into %s: %w", r.t.name, err)
	}
	return c, nil
}

func (r *sqlRepo[T]) FindByID(ctx context.Context, id string) (T, error) {
	row := r.db.QueryRowContext(ctx, r.selectSQL()+" WHERE id = ?", id)
	rec, err := r.t.scan(row)
	if err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("failed to read %s: %w", r.t.name, err)
	}
	return rec, nil
}

func (r *sqlRepo[T]) Find(ctx context.Context, f Filter) ([]T, error) {
	where, args, err := buildWhere(f, r.t.fields)
	if err != nil {
		return nil, err
	}
	query := r.selectSQL() + where + " ORDER BY " + r.t.order
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := r.t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.t.name, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *sqlRepo[T]) UpdateByID(ctx context.Context, id string, p Patch) (T, error) {
	var zero T
	rec, err := r.FindByID(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := rec.Apply(p); err != nil {
		return zero, err
	}
	rec.Touch(r.now().UTC())

	sets := make([]string, 0, len(r.t.columns)-1)
	for _, col := range r.t.columns[1:] {
		sets = append(sets, col+" = ?")
	}
	values := r.t.values(rec)
	args := append(values[1:], values[0])
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", r.t.name, strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return zero, fmt.Errorf("failed to update %s: %w", r.t.name, err)
	}
	return rec, nil
}

func (r *sqlRepo[T]) DeleteByID(ctx context.Context, id string) (T, error) {
	var zero T
	rec, err := r.FindByID(ctx, id)
	if err != nil {
		return zero, err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+r.t.name+" WHERE id = ?", id); err != nil {
		return zero, fmt.Errorf("failed to delete from %s: %w", r.t.name, err)
	}
	return rec, nil
}

func (r *sqlRepo[T]) DeleteMany(ctx context.Context, f Filter) (int, error) {
	where, args, err := buildWhere(f, r.t.fields)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+r.t.name+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", r.t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func buildWhere(f Filter, fields map[string]string) (string, []any, error) {
	if len(f.Conditions) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []any
	for _, c := range f.Conditions {
		col, ok := fields[c.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: cannot filter on %q", ErrInvalidField, c.Field)
		}
		switch c.Op {
		case OpEq:
			clauses = append(clauses, col+" = ?")
			args = append(args, sqlValue(c.Value))
		case OpContains:
			needle, _ := c.Value.(string)
			clauses = append(clauses, "LOWER("+col+") LIKE ? ESCAPE '\\'")
			args = append(args, "%"+escapeLike(strings.ToLower(needle))+"%")
		case OpIn:
			if len(c.Values) == 0 {
				clauses = append(clauses, "0")
				continue
			}
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(c.Values)), ", ")
			clauses = append(clauses, col+" IN ("+marks+")")
			for _, v := range c.Values {
				args = append(args, sqlValue(v))
			}
		case OpBetween:
			clauses = append(clauses, col+" != 0")
			if c.From != nil {
				clauses = append(clauses, col+" >= ?")
				args = append(args, toNanos(*c.From))
			}
			if c.To != nil {
				clauses = append(clauses, col+" <= ?")
				args = append(args, toNanos(*c.To))
			}
		default:
			return "", nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidField, c.Op)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func sqlValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return toNanos(t)
	case bool:
		return boolToInt(t)
	}
	return v
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
