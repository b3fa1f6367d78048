package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/storage"
	"github.com/sirupsen/logrus"
)

const operationsSchema = `
CREATE TABLE IF NOT EXISTS dex_operations (
	id            String,
	kind          LowCardinality(String),
	state         LowCardinality(String),
	success       UInt8,
	error         String,
	error_kind    LowCardinality(String),
	eth_amount    Float64,
	token_amount  Float64,
	lp_amount     Float64,
	expected_out  Float64,
	approve_tx    String,
	action_tx     String,
	steps         Array(String),
	started_at    DateTime64(3),
	finished_at   DateTime64(3),
	duration_ms   Int64
) ENGINE = MergeTree
ORDER BY (kind, started_at)`

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore journals finished operations.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

var _ storage.OperationStore = (*ClickHouseStore)(nil)

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	opts, err := clickHouseOptions(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	logger.WithField("addr", cfg.Addr).Info("connected to clickhouse")

	return &ClickHouseStore{conn: conn, logger: logger}, nil
}

func clickHouseOptions(cfg ClickHouseConfig) (*clickhouse.Options, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("clickhouse addr is required")
	}
	database := cfg.Database
	if database == "" {
		database = "default"
	}
	username := cfg.Username
	if username == "" {
		username = "default"
	}
	return &clickhouse.Options{
		Addr:        strings.Split(cfg.Addr, ","),
		Protocol:    clickhouse.Native,
		DialTimeout: 5 * time.Second,
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: cfg.Password,
		},
	}, nil
}

// EnsureSchema creates the operations table when missing.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, operationsSchema); err != nil {
		return fmt.Errorf("create dex_operations: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) InsertOperation(ctx context.Context, op *models.OperationRecord) error {
	query := `
		INSERT INTO dex_operations (
			id, kind, state, success, error, error_kind,
			eth_amount, token_amount, lp_amount, expected_out,
			approve_tx, action_tx, steps, started_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query, operationRow(op)...)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	return nil
}

func operationRow(op *models.OperationRecord) []any {
	var success uint8
	if op.Success {
		success = 1
	}
	steps := op.Steps
	if steps == nil {
		steps = []string{}
	}
	return []any{
		op.ID, op.Kind, op.State, success, op.Error, op.ErrorKind,
		op.EthAmount, op.TokenAmount, op.LPAmount, op.ExpectedOut,
		op.ApproveTx, op.ActionTx, steps, op.StartedAt, op.FinishedAt, op.DurationMS,
	}
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
