// Package sqldb loads keyed records into MySQL and Snowflake tables through
// database/sql. Each batch is one multi-row INSERT; all batches share a
// transaction that is committed when the pipeline finishes.
package sqldb

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/connector/base"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Driver string
	// Quote is the identifier quote character.
	Quote string
}

var (
	MySQL     = Dialect{Driver: "mysql", Quote: "`"}
	Snowflake = Dialect{Driver: "snowflake", Quote: `"`}
)

// QuoteIdent quotes a possibly qualified identifier (db.table).
func (d Dialect) QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Quote + strings.ReplaceAll(p, d.Quote, d.Quote+d.Quote) + d.Quote
	}
	return strings.Join(parts, ".")
}

// InsertStatement builds INSERT INTO table (cols) VALUES (?, ...), ... for
// rows rows.
func (d Dialect) InsertStatement(table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.QuoteIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdent(c))
	}
	b.WriteString(") VALUES ")

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
	}
	return b.String()
}

// Tx is the part of *sql.Tx the loader uses.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Commit() error
	Rollback() error
}

// Batcher inserts batches into one table inside tx.
type Batcher struct {
	dialect Dialect
	tx      Tx
	table   string
	columns []string
	release func()
	logger  *zap.Logger
}

var _ base.Batcher = (*Batcher)(nil)

// NewBatcher creates a batcher. release runs after commit or rollback.
func NewBatcher(d Dialect, tx Tx, table string, release func(), logger *zap.Logger) *Batcher {
	if release == nil {
		release = func() {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{dialect: d, tx: tx, table: table, release: release, logger: logger}
}

// WriteBatch implements base.Batcher.
func (b *Batcher) WriteBatch(ctx context.Context, batch []*models.Entity) error {
	if len(batch) == 0 {
		return nil
	}
	if b.columns == nil {
		b.columns = base.Columns(batch)
	}
	args := make([]interface{}, 0, len(batch)*len(b.columns))
	for _, e := range batch {
		row, err := base.Row(e, b.columns)
		if err != nil {
			return err
		}
		args = append(args, row...)
	}
	res, err := b.tx.ExecContext(ctx, b.dialect.InsertStatement(b.table, b.columns, len(batch)), args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "insert failed").
			WithDetail("driver", b.dialect.Driver).
			WithDetail("table", b.table)
	}
	if n, err := res.RowsAffected(); err == nil {
		b.logger.Debug("batch inserted", zap.Int64("rows", n))
	}
	return nil
}

// Commit implements base.Batcher.
func (b *Batcher) Commit(context.Context) error {
	defer b.release()
	return b.tx.Commit()
}

// Rollback implements base.Batcher.
func (b *Batcher) Rollback(error) {
	defer b.release()
	if err := b.tx.Rollback(); err != nil {
		b.logger.Warn("rollback failed", zap.Error(err))
	}
}
