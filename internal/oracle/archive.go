package oracle

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/virellia/driftline/internal/models"
)

// PgxExecutor is the subset of the pgx pool used by the archive. It is
// satisfied by *pgxpool.Pool and by pgxmock in tests.
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Archive mirrors on-chain samples into Postgres for long-term analysis. The
// CSV store remains the source of truth; archive failures are logged and
// ignored by the oracle.
type Archive struct {
	db     PgxExecutor
	logger *logrus.Logger
}

// NewArchive creates a sample archive over an existing connection pool.
func NewArchive(db PgxExecutor, logger *logrus.Logger) *Archive {
	if logger == nil {
		logger = logrus.New()
	}
	return &Archive{db: db, logger: logger}
}

// Insert appends one sample. Duplicate timestamps are ignored so replays stay
// idempotent.
func (a *Archive) Insert(ctx context.Context, sample models.OnChainSample) error {
	query := `INSERT INTO onchain_samples (timestamp, tvl, stable_supply)
		VALUES ($1, $2, $3)
		ON CONFLICT (timestamp) DO NOTHING`

	tag, err := a.db.Exec(ctx, query, sample.Timestamp, sample.TVL, sample.StableSupply)
	if err != nil {
		return fmt.Errorf("failed to archive on-chain sample: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"rows":      tag.RowsAffected(),
		"timestamp": sample.Timestamp,
	}).Debug("On-chain sample archived")

	return nil
}
