package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
)

// Client owns the ClickHouse connection pool.
type Client struct {
	db  *sqlx.DB
	cfg ClientConfig
}

// NewClient opens the pool and pings the server.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := ClientConfig{
		Port:            9000,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		PingTimeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("clickhouse host is required")
	}

	raw, err := sql.Open("clickhouse", BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	raw.SetMaxOpenConns(cfg.MaxOpenConns)
	raw.SetMaxIdleConns(cfg.MaxIdleConns)
	raw.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{db: sqlx.NewDb(raw, "clickhouse"), cfg: cfg}, nil
}

// NewFromDB wraps an existing handle. Used with sqlmock.
func NewFromDB(db *sql.DB, driver string) *Client {
	return &Client{db: sqlx.NewDb(db, driver)}
}

func (c *Client) DB() *sqlx.DB { return c.db }

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// BuildDSN renders the clickhouse-go DSN for cfg.
func BuildDSN(cfg ClientConfig) string {
	scheme := "clickhouse"
	if cfg.UseHTTP {
		scheme = "http"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	if cfg.DialTimeout > 0 {
		q.Set("dial_timeout", cfg.DialTimeout.String())
	}
	if cfg.ReadTimeout > 0 {
		q.Set("read_timeout", cfg.ReadTimeout.String())
	}
	// max_execution_time is a server setting in whole seconds.
	if cfg.MaxExecTime > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(cfg.MaxExecTime.Seconds())))
	}
	if cfg.AsyncInsert {
		q.Set("async_insert", "1")
		if cfg.WaitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
