package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-aging/internal/aging"
)

// DefaultRelation is the view expected to expose ledger lines.
const DefaultRelation = "ap_ledger_lines"

const undefinedTable = "42P01"

// PostgresColumns are the columns read from the ledger relation, in order.
var PostgresColumns = []string{"vendor_name", "entry_date", "debit_amount", "credit_amount", "account_name", "account_code"}

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads ledger lines from a relation exposing PostgresColumns.
type PostgresSource struct {
	db       Querier
	relation string
}

// NewPostgresSource binds a relation; an empty name selects DefaultRelation.
func NewPostgresSource(db Querier, relation string) *PostgresSource {
	if strings.TrimSpace(relation) == "" {
		relation = DefaultRelation
	}
	return &PostgresSource{db: db, relation: relation}
}

// PostgresMapping is the field mapping matching PostgresColumns.
func PostgresMapping() aging.FieldMapping {
	mapping := make(aging.FieldMapping, len(PostgresColumns))
	for i, col := range PostgresColumns {
		mapping[aging.Field(col)] = i + 1
	}
	return mapping
}

// LoadLedger selects every line of the relation in entry order.
func (s *PostgresSource) LoadLedger(ctx context.Context) (aging.Ledger, error) {
	rows, err := s.db.Query(ctx, selectStatement(s.relation))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return aging.Ledger{}, fmt.Errorf("%w: %s", ErrRelationMissing, s.relation)
		}
		return aging.Ledger{}, fmt.Errorf("ledger: query %s: %w", s.relation, err)
	}
	defer rows.Close()

	out := aging.Ledger{Header: append([]string(nil), PostgresColumns...), Sources: []string{s.relation}}
	for rows.Next() {
		var (
			vendor, debit, credit, name, code string
			entry                             *time.Time
		)
		if err := rows.Scan(&vendor, &entry, &debit, &credit, &name, &code); err != nil {
			return aging.Ledger{}, fmt.Errorf("ledger: scan %s: %w", s.relation, err)
		}
		var date any
		if entry != nil {
			date = *entry
		}
		out.Rows = append(out.Rows, aging.RawRow{vendor, date, debit, credit, name, code})
	}
	if err := rows.Err(); err != nil {
		return aging.Ledger{}, fmt.Errorf("ledger: iterate %s: %w", s.relation, err)
	}
	return out, nil
}

// SourceName labels the source in metrics.
func (s *PostgresSource) SourceName() string { return "postgres" }

// CacheKey names the relation; Postgres-backed reports are retired through cache
// version bumps published on ledger changes.
func (s *PostgresSource) CacheKey() string { return "pg:" + s.relation }

func selectStatement(relation string) string {
	ident := pgx.Identifier(strings.Split(relation, ".")).Sanitize()
	return fmt.Sprintf(`SELECT COALESCE(vendor_name, ''), entry_date,
	COALESCE(debit_amount, 0)::text, COALESCE(credit_amount, 0)::text,
	COALESCE(account_name, ''), COALESCE(account_code::text, '')
FROM %s
ORDER BY entry_date, vendor_name, account_code`, ident)
}
