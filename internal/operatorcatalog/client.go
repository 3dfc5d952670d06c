// Package operatorcatalog reads the shared operator catalog from the read-only
// MS SQL Server warehouse. Agencies are matched by their slug.
package operatorcatalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"github.com/straye-as/travel-crm-api/internal/config"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	defaultBackoffFactor  = 2.0

	defaultHealthCheckTimeout = 5 * time.Second
	defaultQueryTimeout       = 30 * time.Second
)

// ErrNotEnabled is returned by queries on a client that was never connected
var ErrNotEnabled = errors.New("operator catalog not enabled")

const operatorsQuery = `SELECT operator_code, operator_name, contact_email, operator_ref
FROM dbo.travel_operators
WHERE agency_slug = @p1 AND is_active = 1
ORDER BY operator_code`

// Operator is one catalog row
type Operator struct {
	Code        string
	Name        string
	Email       string
	ExternalRef string
}

// Client provides read-only access to the operator catalog
type Client struct {
	db           *sql.DB
	logger       *zap.Logger
	queryTimeout time.Duration
}

// HealthStatus represents the health check result for the catalog connection
type HealthStatus struct {
	Status     string        `json:"status"`
	Latency    time.Duration `json:"latency_ms"`
	Error      string        `json:"error,omitempty"`
	Open       int           `json:"open_connections"`
	InUse      int           `json:"in_use"`
	Idle       int           `json:"idle"`
	WaitCount  int64         `json:"wait_count"`
	WaitTimeMs int64         `json:"wait_time_ms"`
}

// NewClient connects to the catalog. Returns nil when the catalog is disabled
// or not configured.
func NewClient(cfg *config.OperatorCatalogConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Operator catalog disabled")
		return nil, nil
	}

	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Operator catalog enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	connStr := buildConnectionString(cfg)

	var db *sql.DB
	var err error
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxRetries; attempt++ {
		db, err = sql.Open("sqlserver", connStr)
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

			ctx, cancel := context.WithTimeout(context.Background(), defaultHealthCheckTimeout)
			err = db.PingContext(ctx)
			cancel()
			if err == nil {
				logger.Info("Operator catalog connection established", zap.Int("attempts_taken", attempt))
				return NewClientFromDB(db, cfg.QueryTimeoutDuration(), logger), nil
			}
			_ = db.Close()
		}

		logger.Warn("Operator catalog connection attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
		)
		if attempt < defaultMaxRetries {
			time.Sleep(backoff)
			backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
		}
	}

	return nil, fmt.Errorf("failed to connect to operator catalog after %d attempts: %w", defaultMaxRetries, err)
}

// NewClientFromDB wraps an open connection pool
func NewClientFromDB(db *sql.DB, queryTimeout time.Duration, logger *zap.Logger) *Client {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &Client{db: db, logger: logger, queryTimeout: queryTimeout}
}

// buildConnectionString turns host:port/database into a sqlserver:// URL
func buildConnectionString(cfg *config.OperatorCatalogConfig) string {
	hostPort, database, _ := strings.Cut(cfg.URL, "/")
	host, port, found := strings.Cut(hostPort, ":")
	if !found || port == "" {
		port = "1433"
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	query.Add("ApplicationIntent", "ReadOnly")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// IsEnabled reports whether the client is connected
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}

// Close closes the connection pool
func (c *Client) Close() error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close operator catalog connection: %w", err)
	}
	c.logger.Info("Operator catalog connection closed")
	return nil
}

// HealthCheck pings the catalog and reports pool statistics
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if !c.IsEnabled() {
		return &HealthStatus{Status: "disabled"}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	stats := c.db.Stats()
	status := &HealthStatus{
		Status:     "healthy",
		Latency:    time.Since(start),
		Open:       stats.OpenConnections,
		InUse:      stats.InUse,
		Idle:       stats.Idle,
		WaitCount:  stats.WaitCount,
		WaitTimeMs: stats.WaitDuration.Milliseconds(),
	}
	if err != nil {
		c.logger.Warn("Operator catalog health check failed", zap.Error(err))
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

// FetchOperators returns the active catalog operators of an agency
func (c *Client) FetchOperators(ctx context.Context, agencySlug string) ([]Operator, error) {
	if !c.IsEnabled() {
		return nil, ErrNotEnabled
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, operatorsQuery, agencySlug)
	if err != nil {
		return nil, fmt.Errorf("operator catalog query failed: %w", err)
	}
	defer rows.Close()

	operators := []Operator{}
	for rows.Next() {
		var code, name string
		var email, ref sql.NullString
		if err := rows.Scan(&code, &name, &email, &ref); err != nil {
			return nil, fmt.Errorf("failed to scan operator row: %w", err)
		}
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		operators = append(operators, Operator{
			Code:        code,
			Name:        strings.TrimSpace(name),
			Email:       strings.TrimSpace(email.String),
			ExternalRef: strings.TrimSpace(ref.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operator rows: %w", err)
	}

	c.logger.Debug("Operator catalog query completed",
		zap.String("agency_slug", agencySlug),
		zap.Int("rows_returned", len(operators)),
		zap.Duration("duration", time.Since(start)),
	)
	return operators, nil
}
