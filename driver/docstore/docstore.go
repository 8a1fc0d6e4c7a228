// Package docstore implements the document store contract on SQLite.
//
// Every collection is one table of (id TEXT PRIMARY KEY, doc TEXT)
// rows holding JSON documents. Synthesized indexes become expression
// indexes over json_extract, so uniqueness is enforced by the database
// itself and constraint failures surface through the regular error
// shapes. Filters and the $match/$sort/$limit pipeline stages compose
// into single queries.
//
// Values round-trip through encoding/json: numbers come back as
// float64 and timestamps as RFC 3339 strings.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/developer-rs5/easy-mongoo/driver"
	"github.com/developer-rs5/easy-mongoo/schema"
	"github.com/developer-rs5/easy-mongoo/schema/field"
	"github.com/developer-rs5/easy-mongoo/schema/index"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// identRe validates collection names and indexed field paths before
// they are spliced into SQL text. Dots separate JSON path segments.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func validIdent(s string) bool {
	return s != "" && len(s) <= 128 && identRe.MatchString(s)
}

// Driver materializes collections onto a single SQLite database.
type Driver struct {
	db    *sql.DB
	mu    sync.Mutex
	colls map[string]*Collection
}

// Open opens the SQLite database at path and returns a store backed
// by it. The path ":memory:" yields a private in-memory database.
func Open(path string) (*Driver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("docstore: open %q: %w", path, err)
	}
	return OpenDB(db), nil
}

// OpenDB wraps an existing database handle.
func OpenDB(db *sql.DB) *Driver {
	return &Driver{db: db, colls: make(map[string]*Collection)}
}

// DB returns the underlying database handle.
func (d *Driver) DB() *sql.DB { return d.db }

// Materialize creates the collection's table and indexes and returns
// its handle. Materializing the same collection again returns the
// existing handle.
func (d *Driver) Materialize(ctx context.Context, spec *driver.CollectionSpec) (driver.Handle, error) {
	if spec == nil || spec.Tree == nil {
		return nil, errors.New("docstore: nil collection spec")
	}
	name := spec.Tree.Collection
	if !validIdent(name) {
		return nil, fmt.Errorf("docstore: invalid collection name %q", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.colls[name]; ok {
		return c, nil
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (id TEXT PRIMARY KEY, doc TEXT NOT NULL)`, name)
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("docstore: create table %q: %w", name, err)
	}
	c := &Collection{db: d.db, name: name, model: spec.Tree.Name, spec: spec}
	if err := c.SyncIndexes(ctx); err != nil {
		return nil, err
	}
	d.colls[name] = c
	return c, nil
}

// Close closes the database.
func (d *Driver) Close() error { return d.db.Close() }

// Collection is one materialized model: a table of JSON documents.
type Collection struct {
	db    *sql.DB
	name  string
	model string

	mu     sync.RWMutex
	spec   *driver.CollectionSpec
	synced []string
}

// Name returns the table name.
func (c *Collection) Name() string { return c.name }

// Insert stores doc, assigning a fresh identity unless the document
// carries one.
func (c *Collection) Insert(ctx context.Context, doc schema.Document) (schema.Document, error) {
	stored := doc.Clone()
	if stored == nil {
		stored = schema.Document{}
	}
	id, err := identity(stored)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode document: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %q (id, doc) VALUES (?, ?)`, c.name)
	if _, err := c.db.ExecContext(ctx, query, id, string(payload)); err != nil {
		return nil, c.writeError(err, stored)
	}
	return stored, nil
}

// identity returns the document's identity, assigning a new one when
// absent. A provided identity must parse as a UUID.
func identity(doc schema.Document) (string, error) {
	if v, ok := doc[schema.IdentityField]; ok {
		s, ok := v.(string)
		if !ok {
			return "", &driver.CastError{Value: v}
		}
		if _, err := uuid.Parse(s); err != nil {
			return "", &driver.CastError{Value: s}
		}
		return s, nil
	}
	id := uuid.NewString()
	doc[schema.IdentityField] = id
	return id, nil
}

// FindByID returns the document with the given identity.
func (c *Collection) FindByID(ctx context.Context, id string) (schema.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &driver.CastError{Value: id}
	}
	query := fmt.Sprintf(`SELECT doc FROM %q WHERE id = ?`, c.name)
	var payload string
	err := c.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &driver.NotFoundError{Model: c.model, ID: id}
	}
	if err != nil {
		return nil, err
	}
	return decode(payload)
}

// Find returns the documents matching filter in insertion order. An
// empty filter matches everything.
func (c *Collection) Find(ctx context.Context, filter schema.Document) ([]schema.Document, error) {
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT doc FROM %q`, c.name) + where + ` ORDER BY rowid`
	return c.queryDocs(ctx, query, args)
}

// UpdateByID merges changes into the stored document inside a
// transaction and returns the result.
func (c *Collection) UpdateByID(ctx context.Context, id string, changes schema.Document) (schema.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &driver.CastError{Value: id}
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var payload string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %q WHERE id = ?`, c.name), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &driver.NotFoundError{Model: c.model, ID: id}
	}
	if err != nil {
		return nil, err
	}
	doc, err := decode(payload)
	if err != nil {
		return nil, err
	}
	for k, v := range changes.Clone() {
		doc[k] = v
	}
	doc[schema.IdentityField] = id
	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %q SET doc = ? WHERE id = ?`, c.name), string(merged), id); err != nil {
		return nil, c.writeError(err, doc)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteByID removes the document with the given identity.
func (c *Collection) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &driver.CastError{Value: id}
	}
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, c.name), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &driver.NotFoundError{Model: c.model, ID: id}
	}
	return nil
}

// Aggregate composes the pipeline's $match, $sort and $limit stages
// into one query. Each stage carries exactly one operator.
func (c *Collection) Aggregate(ctx context.Context, pipeline []schema.Document) ([]schema.Document, error) {
	var (
		conds   []string
		args    []any
		orderBy string
		limit   string
	)
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("docstore: aggregation stages carry exactly one operator, got %d", len(stage))
		}
		for op, v := range stage {
			switch op {
			case "$match":
				m, ok := asMap(v)
				if !ok {
					return nil, fmt.Errorf("docstore: $match takes a document, got %T", v)
				}
				cs, as, err := buildConds(m)
				if err != nil {
					return nil, err
				}
				conds = append(conds, cs...)
				args = append(args, as...)
			case "$sort":
				m, ok := asMap(v)
				if !ok || len(m) != 1 {
					return nil, errors.New("docstore: $sort takes a single-key document")
				}
				for f, dir := range m {
					if !validIdent(f) {
						return nil, fmt.Errorf("docstore: invalid sort field %q", f)
					}
					d, ok := field.Float(dir)
					if !ok || (d != 1 && d != -1) {
						return nil, fmt.Errorf("docstore: sort direction for %q must be 1 or -1", f)
					}
					orderBy = ` ORDER BY ` + jsonExpr(f)
					if d == -1 {
						orderBy += ` DESC`
					}
				}
			case "$limit":
				n, ok := field.Float(v)
				if !ok || n < 0 {
					return nil, fmt.Errorf("docstore: invalid $limit %v", v)
				}
				limit = fmt.Sprintf(` LIMIT %d`, int64(n))
			default:
				return nil, fmt.Errorf("docstore: unsupported aggregation stage %q", op)
			}
		}
	}
	query := fmt.Sprintf(`SELECT doc FROM %q`, c.name)
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	if orderBy == "" {
		orderBy = ` ORDER BY rowid`
	}
	query += orderBy + limit
	return c.queryDocs(ctx, query, args)
}

// SyncIndexes creates the spec's indexes as expression indexes over
// json_extract. Creating a unique index over conflicting rows reports
// the duplicate.
func (c *Collection) SyncIndexes(ctx context.Context) error {
	c.mu.RLock()
	spec := c.spec
	c.mu.RUnlock()
	if spec.Features == nil {
		return nil
	}
	names := make([]string, 0, len(spec.Features.Indexes))
	for _, idx := range spec.Features.Indexes {
		ddl, name, err := indexDDL(c.name, idx)
		if err != nil {
			return err
		}
		if _, err := c.db.ExecContext(ctx, ddl); err != nil {
			return c.writeError(fmt.Errorf("docstore: create index %q: %w", name, err), nil)
		}
		names = append(names, name)
	}
	c.mu.Lock()
	c.synced = names
	c.mu.Unlock()
	return nil
}

// SyncedIndexes returns the index names created by the last sync.
func (c *Collection) SyncedIndexes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.synced))
	copy(out, c.synced)
	return out
}

// Rebind swaps the bound spec. New indexes apply on the next sync.
func (c *Collection) Rebind(spec *driver.CollectionSpec) error {
	if spec == nil || spec.Tree == nil {
		return errors.New("docstore: nil collection spec")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spec = spec
	return nil
}

func (c *Collection) queryDocs(ctx context.Context, query string, args []any) ([]schema.Document, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []schema.Document
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		doc, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func decode(payload string) (schema.Document, error) {
	var doc schema.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("docstore: decode document: %w", err)
	}
	return doc, nil
}

// Message fragments SQLite encodes the violated constraint in.
var (
	columnUniqueRe = regexp.MustCompile(`UNIQUE constraint failed: (\w+)\.(\w+)`)
	indexUniqueRe  = regexp.MustCompile(`UNIQUE constraint failed: index '([^']+)'`)
)

// writeError maps a uniqueness violation onto the duplicate-key shape,
// resolving the violated field through the bound spec. Anything else
// passes through raw.
func (c *Collection) writeError(err error, doc schema.Document) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return err
	}
	f := c.violatedField(msg)
	if f == "" {
		return err
	}
	dup := &driver.DuplicateKeyError{Field: f}
	if doc != nil {
		dup.Value = doc[f]
	}
	return dup
}

func (c *Collection) violatedField(msg string) string {
	if m := columnUniqueRe.FindStringSubmatch(msg); m != nil {
		if m[2] == "id" {
			return schema.IdentityField
		}
		return m[2]
	}
	m := indexUniqueRe.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	name := strings.TrimPrefix(m[1], c.name+"_")
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.spec.Features == nil {
		return ""
	}
	for _, idx := range c.spec.Features.Indexes {
		if idx.Name() == name && len(idx.Keys) > 0 {
			return idx.Keys[0].Field
		}
	}
	return ""
}

// indexDDL renders one descriptor as a CREATE INDEX statement and
// returns it with the derived index name. Text, TTL and geospatial
// descriptors become plain indexes over their keys; expiry and
// matching stay with the caller.
func indexDDL(table string, idx *index.Descriptor) (string, string, error) {
	if idx.Err != nil {
		return "", "", idx.Err
	}
	if len(idx.Keys) == 0 {
		return "", "", fmt.Errorf("docstore: index %q has no keys", idx.Name())
	}
	cols := make([]string, len(idx.Keys))
	for i, k := range idx.Keys {
		if !validIdent(k.Field) {
			return "", "", fmt.Errorf("docstore: invalid indexed field %q", k.Field)
		}
		cols[i] = jsonExpr(k.Field)
		if k.Order == index.Desc {
			cols[i] += " DESC"
		}
	}
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	name := table + "_" + idx.Name()
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE %s IF NOT EXISTS %q ON %q (%s)", kind, name, table, strings.Join(cols, ", "))
	var conds []string
	if idx.Sparse {
		for _, k := range idx.Keys {
			conds = append(conds, jsonExpr(k.Field)+" IS NOT NULL")
		}
	}
	if len(idx.Partial) > 0 {
		fields := make([]string, 0, len(idx.Partial))
		for f := range idx.Partial {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			if !validIdent(f) {
				return "", "", fmt.Errorf("docstore: invalid partial filter field %q", f)
			}
			lit, err := sqlLiteral(idx.Partial[f])
			if err != nil {
				return "", "", err
			}
			conds = append(conds, jsonExpr(f)+" = "+lit)
		}
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	return b.String(), name, nil
}

func jsonExpr(fieldPath string) string {
	return fmt.Sprintf("json_extract(doc, '$.%s')", fieldPath)
}

// sqlLiteral renders a partial-filter value. Index DDL cannot bind
// parameters, so only scalar values are representable.
func sqlLiteral(v any) (string, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'", nil
	default:
		if f, ok := field.Float(v); ok {
			return fmt.Sprintf("%v", f), nil
		}
	}
	return "", fmt.Errorf("docstore: unsupported partial filter value %v (%T)", v, v)
}

// buildWhere renders a filter document as a WHERE clause with bound
// arguments. Fields are emitted in sorted order so queries are
// deterministic.
func buildWhere(filter schema.Document) (string, []any, error) {
	conds, args, err := buildConds(filter)
	if err != nil {
		return "", nil, err
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args, nil
}

func buildConds(filter schema.Document) ([]string, []any, error) {
	if len(filter) == 0 {
		return nil, nil, nil
	}
	fields := make([]string, 0, len(filter))
	for f := range filter {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var (
		conds []string
		args  []any
	)
	for _, f := range fields {
		if !validIdent(f) {
			return nil, nil, fmt.Errorf("docstore: invalid filter field %q", f)
		}
		expr := jsonExpr(f)
		ops, ok := operators(filter[f])
		if !ok {
			conds = append(conds, expr+" = ?")
			args = append(args, bindValue(filter[f]))
			continue
		}
		names := make([]string, 0, len(ops))
		for op := range ops {
			names = append(names, op)
		}
		sort.Strings(names)
		for _, op := range names {
			v := ops[op]
			switch op {
			case "$ne":
				conds = append(conds, expr+" IS NOT ?")
				args = append(args, bindValue(v))
			case "$in":
				items, ok := v.([]any)
				if !ok {
					return nil, nil, fmt.Errorf("docstore: $in takes an array, got %T", v)
				}
				if len(items) == 0 {
					conds = append(conds, "1 = 0")
					continue
				}
				ph := strings.Repeat("?, ", len(items))
				conds = append(conds, expr+" IN ("+ph[:len(ph)-2]+")")
				for _, item := range items {
					args = append(args, bindValue(item))
				}
			case "$gt":
				conds = append(conds, expr+" > ?")
				args = append(args, bindValue(v))
			case "$gte":
				conds = append(conds, expr+" >= ?")
				args = append(args, bindValue(v))
			case "$lt":
				conds = append(conds, expr+" < ?")
				args = append(args, bindValue(v))
			case "$lte":
				conds = append(conds, expr+" <= ?")
				args = append(args, bindValue(v))
			default:
				return nil, nil, fmt.Errorf("docstore: unsupported operator %q", op)
			}
		}
	}
	return conds, args, nil
}

// operators reports if v is an operator document: every key starts
// with '$'.
func operators(v any) (map[string]any, bool) {
	m, ok := asMap(v)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case schema.Document:
		return t, true
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}

// bindValue prepares a filter value for binding: timestamps take the
// RFC 3339 form documents are stored with, so comparisons against
// json_extract output stay consistent.
func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

var (
	_ driver.Driver   = (*Driver)(nil)
	_ driver.Handle   = (*Collection)(nil)
	_ driver.Rebinder = (*Collection)(nil)
)
