package postgres

import (
	"context"
	"database/sql"
	engine "dbeval/benchmark/engines/abstract"
	dbutils "dbeval/dbUtils"
	"dbeval/generator"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"
)

type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Database    string `yaml:"database"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	SSLMode     string `yaml:"sslmode"`
	VacuumFull  bool   `yaml:"vacuumFull"`
	AutoExplain bool   `yaml:"autoExplain"`
}

// DSN returns the lib/pq connection string.
func (c Config) DSN() string {
	kv := []string{
		"host=" + quote(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"dbname=" + quote(c.Database),
		"user=" + quote(c.User),
		"sslmode=" + quote(c.SSLMode),
	}
	if c.Password != "" {
		kv = append(kv, "password="+quote(c.Password))
	}
	return strings.Join(kv, " ")
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

type Postgres struct {
	db  *sql.DB
	cfg Config
}

// Open connects to the database and checks the connection.
func Open(ctx context.Context, cfg Config) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "opening postgresql connection")
	}
	// one caller at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to postgresql at %s:%d", cfg.Host, cfg.Port)
	}

	if cfg.AutoExplain {
		if err := dbutils.EnableAutoExplain(ctx, db); err != nil {
			zlog.Warn().Err(err).Msg("auto_explain not available")
		}
	}

	zlog.Info().Str("backend", "postgresql").Str("host", cfg.Host).Str("database", cfg.Database).Msg("connected")
	return &Postgres{db: db, cfg: cfg}, nil
}

func (p *Postgres) Name() string {
	return "postgresql"
}

func (p *Postgres) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		SchemaMigrationRequired: true,
		NestedStructures:        engine.Emulated,
		Validation:              engine.Native,
		References:              engine.Native,
		CascadeDelete:           engine.Native,
		Transactions:            engine.Native,
	}
}

func (p *Postgres) Provision(ctx context.Context, schema string) error {
	t, err := lookupTable(schema)
	if err != nil {
		return &engine.ProvisionError{Schema: schema, Cause: err}
	}

	p.Drop(ctx, schema)
	for _, stmt := range t.create {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return &engine.ProvisionError{Schema: schema, Cause: err}
		}
	}
	zlog.Debug().Str("backend", p.Name()).Str("schema", schema).Msg("provisioned")
	return nil
}

func (p *Postgres) Drop(ctx context.Context, schema string) {
	t, err := lookupTable(schema)
	if err != nil {
		return
	}
	dbutils.ExecAll(ctx, p.db, t.drop)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertMany bulk loads the records (and their normalized nested rows) with
// COPY inside one transaction.
func (p *Postgres) InsertMany(ctx context.Context, schema string, records []generator.Record) (int, error) {
	t, err := lookupTable(schema)
	if err != nil {
		return 0, err
	}

	txn, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	names, _ := t.row(generator.Record{}, true)
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		_, values := t.row(r, true)
		rows = append(rows, values)
	}
	if err := copyIn(ctx, txn, t.name, names, rows); err != nil {
		return 0, err
	}

	for i := range t.children {
		ch := &t.children[i]
		childRows := [][]any{}
		for _, r := range records {
			childRows = append(childRows, ch.rows(r)...)
		}
		if err := copyIn(ctx, txn, ch.table, ch.columnNames(), childRows); err != nil {
			return 0, err
		}
	}

	if err := txn.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

func copyIn(ctx context.Context, txn *sql.Tx, table string, names []string, rows [][]any) error {
	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(table, names...))
	if err != nil {
		return errors.Wrapf(err, "copy into %s", table)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return errors.Wrapf(err, "copy into %s", table)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return errors.Wrapf(err, "copy into %s", table)
	}
	return stmt.Close()
}

func (p *Postgres) InsertOne(ctx context.Context, schema string, record generator.Record) engine.Outcome {
	t, err := lookupTable(schema)
	if err != nil {
		return engine.Fatal(err)
	}
	if len(t.children) == 0 {
		return engine.Classify(insert(ctx, p.db, t, record), isRejection)
	}
	return p.RunTransaction(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.Insert(ctx, schema, record)
	})
}

func insert(ctx context.Context, db execer, t *table, r generator.Record) error {
	names, values := t.row(r, false)
	if _, err := db.ExecContext(ctx, insertStatement(t.name, names), values...); err != nil {
		return err
	}
	for i := range t.children {
		ch := &t.children[i]
		stmt := insertStatement(ch.table, ch.columnNames())
		for _, row := range ch.rows(r) {
			if _, err := db.ExecContext(ctx, stmt, row...); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Postgres) Find(ctx context.Context, schema string, filter engine.Filter, limit int) (int, error) {
	t, err := lookupTable(schema)
	if err != nil {
		return 0, err
	}
	b := &builder{}
	where, err := t.where(b, filter)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT %s.* FROM %s%s", t.name, t.name, where)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := p.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func (p *Postgres) Count(ctx context.Context, schema string, filter engine.Filter) (int64, error) {
	t, err := lookupTable(schema)
	if err != nil {
		return 0, err
	}
	b := &builder{}
	where, err := t.where(b, filter)
	if err != nil {
		return 0, err
	}
	var n int64
	err = p.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s%s", t.name, where), b.args...).Scan(&n)
	return n, err
}

func (p *Postgres) Update(ctx context.Context, schema string, filter engine.Filter, mutation engine.Mutation) (int64, error) {
	return update(ctx, p.db, schema, filter, mutation)
}

func update(ctx context.Context, db execer, schema string, filter engine.Filter, mutation engine.Mutation) (int64, error) {
	t, err := lookupTable(schema)
	if err != nil {
		return 0, err
	}
	b := &builder{}
	set, err := t.set(b, mutation)
	if err != nil {
		return 0, err
	}
	where, err := t.where(b, filter)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s%s", t.name, set, where), b.args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete relies on ON DELETE CASCADE for dependent rows.
func (p *Postgres) Delete(ctx context.Context, schema string, filter engine.Filter) (int64, error) {
	t, err := lookupTable(schema)
	if err != nil {
		return 0, err
	}
	b := &builder{}
	where, err := t.where(b, filter)
	if err != nil {
		return 0, err
	}
	res, err := p.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s%s", t.name, where), b.args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *Postgres) RunTransaction(ctx context.Context, fn engine.TxFunc) engine.Outcome {
	txn, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.Fatal(err)
	}

	if err := fn(ctx, &pgTx{txn: txn}); err != nil {
		if rbErr := txn.Rollback(); rbErr != nil {
			zlog.Warn().Err(rbErr).Str("backend", p.Name()).Msg("rollback failed")
		}
		return engine.Classify(err, isRejection)
	}
	return engine.Classify(txn.Commit(), isRejection)
}

func (p *Postgres) Stats(ctx context.Context) (engine.Stats, error) {
	size, err := dbutils.DbSize(ctx, p.db, p.cfg.VacuumFull, allRelations())
	if err != nil {
		return engine.Stats{}, err
	}
	return engine.Stats{StorageBytes: size}, nil
}

func (p *Postgres) Close(_ context.Context) error {
	return p.db.Close()
}

type pgTx struct {
	txn *sql.Tx
}

// FindOne locks the returned row with FOR UPDATE.
func (t *pgTx) FindOne(ctx context.Context, schema string, filter engine.Filter) (generator.Record, bool, error) {
	tbl, err := lookupTable(schema)
	if err != nil {
		return generator.Record{}, false, err
	}
	b := &builder{}
	where, err := tbl.where(b, filter)
	if err != nil {
		return generator.Record{}, false, err
	}

	rows, err := t.txn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s%s LIMIT 1 FOR UPDATE", tbl.name, where), b.args...)
	if err != nil {
		return generator.Record{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return generator.Record{}, false, rows.Err()
	}

	names, err := rows.Columns()
	if err != nil {
		return generator.Record{}, false, err
	}
	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return generator.Record{}, false, err
	}
	return tbl.record(names, values), true, nil
}

func (t *pgTx) Insert(ctx context.Context, schema string, record generator.Record) error {
	tbl, err := lookupTable(schema)
	if err != nil {
		return err
	}
	return insert(ctx, t.txn, tbl, record)
}

func (t *pgTx) Update(ctx context.Context, schema string, filter engine.Filter, mutation engine.Mutation) (int64, error) {
	return update(ctx, t.txn, schema, filter, mutation)
}

// record rebuilds a record from a scanned row; DECIMAL and text columns
// arrive as []byte.
func (t *table) record(names []string, values []any) generator.Record {
	r := generator.Record{Fields: map[string]any{}}
	byColumn := map[string]column{}
	for _, c := range t.columns {
		byColumn[c.name] = c
	}
	for i, name := range names {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if name == t.key {
			r.ID = fmt.Sprint(v)
			r.Fields[name] = v
			continue
		}
		field := name
		if c, ok := byColumn[name]; ok {
			field = c.field
		}
		setField(r.Fields, field, v)
	}
	return r
}

func setField(fields map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := fields[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			fields[part] = next
		}
		fields = next
	}
	fields[parts[len(parts)-1]] = v
}

var rejectedCodes = map[pq.ErrorCode]bool{
	"22P02": true, // invalid_text_representation (enum values)
	"22001": true, // string_data_right_truncation
	"22003": true, // numeric_value_out_of_range
}

// isRejection recognizes integrity constraint violations.
func isRejection(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code.Class() == "23" || rejectedCodes[pqErr.Code]
}

var _ engine.Engine = (*Postgres)(nil)
