package records

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"loan-rag/internal/config"
)

type creditRow struct {
	bun.BaseModel `bun:"table:credit_scores,alias:cs"`
	ID            string `bun:"id,pk"`
	Name          string `bun:"name"`
	Email         string `bun:"email"`
	CreditScore   int    `bun:"credit_score"`
}

type accountRow struct {
	bun.BaseModel `bun:"table:account_status,alias:as"`
	ID            string `bun:"id,pk"`
	Name          string `bun:"name"`
	Email         string `bun:"email"`
	Nationality   string `bun:"nationality"`
	AccountStatus string `bun:"account_status"`
}

type residencyRow struct {
	bun.BaseModel `bun:"table:pr_status,alias:pr"`
	ID            string `bun:"id,pk"`
	Name          string `bun:"name"`
	Email         string `bun:"email"`
	PRStatus      string `bun:"pr_status"`
}

// PostgresStore serves the same three record sources out of Postgres
// tables instead of CSV files.
type PostgresStore struct {
	db *bun.DB
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Key))), nil
}

func NewPostgresStore(sqldb *sql.DB, debug bool) *PostgresStore {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &PostgresStore{db: db}
}

// InitDB creates the record tables if they do not exist.
func (s *PostgresStore) InitDB(ctx context.Context) error {
	for _, model := range []any{(*creditRow)(nil), (*accountRow)(nil), (*residencyRow)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Read(ctx context.Context, src Source) ([]Record, error) {
	switch src {
	case SourceCredit:
		var rows []creditRow
		if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
			return nil, err
		}
		out := make([]Record, len(rows))
		for i, r := range rows {
			out[i] = Record{
				ID:             r.ID,
				Name:           Clean(r.Name),
				Email:          Clean(r.Email),
				CreditScore:    r.CreditScore,
				HasCreditScore: true,
			}
		}
		return out, nil
	case SourceAccounts:
		var rows []accountRow
		if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
			return nil, err
		}
		out := make([]Record, len(rows))
		for i, r := range rows {
			out[i] = Record{
				ID:            r.ID,
				Name:          Clean(r.Name),
				Email:         Clean(r.Email),
				Nationality:   Clean(r.Nationality),
				AccountStatus: Clean(r.AccountStatus),
			}
		}
		return out, nil
	case SourceResidency:
		var rows []residencyRow
		if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
			return nil, err
		}
		out := make([]Record, len(rows))
		for i, r := range rows {
			out[i] = Record{
				ID:       r.ID,
				Name:     Clean(r.Name),
				Email:    Clean(r.Email),
				PRStatus: Clean(r.PRStatus),
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown record source: %s", src)
	}
}
