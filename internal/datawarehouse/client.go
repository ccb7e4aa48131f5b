// Package datawarehouse provides read-only connectivity to the SAP reporting
// warehouse on MS SQL Server. It is used to pick up order booking dates for
// offers that have received a purchase order.
package datawarehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"github.com/sethvargo/go-retry"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second

	defaultHealthCheckTimeout = 5 * time.Second

	// SQL Server caps a statement at 2100 parameters
	maxLookupBatch = 500
)

// SalesOrderTable is the warehouse view holding SAP sales order headers
const SalesOrderTable = "dbo.sap_sales_order_header"

// Client provides read-only access to the MS SQL Server data warehouse.
type Client struct {
	db           *sql.DB
	config       *config.DataWarehouseConfig
	logger       *zap.Logger
	queryTimeout time.Duration
}

// HealthStatus represents the health check result for the data warehouse connection
type HealthStatus struct {
	Status     string        `json:"status"`
	Latency    time.Duration `json:"latency_ms"`
	Error      string        `json:"error,omitempty"`
	MaxOpen    int           `json:"max_open_connections"`
	Open       int           `json:"open_connections"`
	InUse      int           `json:"in_use"`
	Idle       int           `json:"idle"`
	WaitCount  int64         `json:"wait_count"`
	WaitTimeMs int64         `json:"wait_time_ms"`
}

// NewClient creates a new data warehouse client with the given configuration.
// Returns nil if the data warehouse is not enabled or not configured.
func NewClient(ctx context.Context, cfg *config.DataWarehouseConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Data warehouse connection disabled")
		return nil, nil
	}

	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Data warehouse enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	logger.Info("Initializing data warehouse connection",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("conn_max_lifetime_seconds", cfg.ConnMaxLifetime),
		zap.Int("query_timeout_seconds", cfg.QueryTimeout),
	)

	connStr, err := buildConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	var db *sql.DB
	attempt := 0
	backoff := retry.WithMaxRetries(defaultMaxRetries-1,
		retry.WithCappedDuration(defaultMaxBackoff, retry.NewExponential(defaultInitialBackoff)))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		conn, err := sql.Open("sqlserver", connStr)
		if err != nil {
			logger.Warn("Failed to open data warehouse connection", zap.Error(err), zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		}

		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

		pingCtx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
		err = conn.PingContext(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("Data warehouse ping failed", zap.Error(err), zap.Int("attempt", attempt))
			_ = conn.Close()
			return retry.RetryableError(err)
		}

		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data warehouse after %d attempts: %w", attempt, err)
	}

	logger.Info("Data warehouse connection established", zap.Int("attempts_taken", attempt))

	return &Client{
		db:           db,
		config:       cfg,
		logger:       logger,
		queryTimeout: cfg.QueryTimeoutDuration(),
	}, nil
}

// buildConnectionString constructs a SQL Server connection string from the config.
// URL format expected: host:port/database or host:port (uses default database)
func buildConnectionString(cfg *config.DataWarehouseConfig) (string, error) {
	urlParts := strings.SplitN(cfg.URL, "/", 2)
	hostPort := urlParts[0]
	database := ""
	if len(urlParts) > 1 {
		database = urlParts[1]
	}
	if hostPort == "" {
		return "", fmt.Errorf("missing host in %q", cfg.URL)
	}

	hostParts := strings.SplitN(hostPort, ":", 2)
	host := hostParts[0]
	port := "1433"
	if len(hostParts) > 1 {
		port = hostParts[1]
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

	return u.String(), nil
}

// Close gracefully closes the data warehouse connection.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}

	c.logger.Info("Closing data warehouse connection")

	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close data warehouse connection", zap.Error(err))
		return fmt.Errorf("failed to close data warehouse connection: %w", err)
	}
	return nil
}

// HealthCheck pings the warehouse and reports pool statistics
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if c == nil || c.db == nil {
		return &HealthStatus{
			Status: "disabled",
		}
	}

	start := time.Now()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	stats := c.db.Stats()
	status := &HealthStatus{
		Latency:    latency,
		MaxOpen:    stats.MaxOpenConnections,
		Open:       stats.OpenConnections,
		InUse:      stats.InUse,
		Idle:       stats.Idle,
		WaitCount:  stats.WaitCount,
		WaitTimeMs: stats.WaitDuration.Milliseconds(),
	}

	if err != nil {
		c.logger.Warn("Data warehouse health check failed",
			zap.Error(err),
			zap.Duration("latency", latency),
		)
		status.Status = "unhealthy"
		status.Error = err.Error()
	} else {
		status.Status = "healthy"
	}

	return status
}

// GetSAPBookingDates returns the earliest SAP booking date for each purchase
// order number that has been booked. Unknown numbers are absent from the map.
func (c *Client) GetSAPBookingDates(ctx context.Context, poNumbers []string) (map[string]time.Time, error) {
	if c == nil || c.db == nil {
		return nil, fmt.Errorf("data warehouse client not initialized")
	}

	result := make(map[string]time.Time, len(poNumbers))
	for start := 0; start < len(poNumbers); start += maxLookupBatch {
		end := min(start+maxLookupBatch, len(poNumbers))
		if err := c.lookupBatch(ctx, poNumbers[start:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (c *Client) lookupBatch(ctx context.Context, poNumbers []string, into map[string]time.Time) error {
	if len(poNumbers) == 0 {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	query, args := bookingDateQuery(poNumbers)

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("Data warehouse query failed",
			zap.Error(err),
			zap.String("query", truncateQuery(query, 200)),
			zap.Duration("duration", time.Since(start)),
		)
		return fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			po     string
			booked time.Time
		)
		if err := rows.Scan(&po, &booked); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		into[strings.TrimSpace(po)] = booked.UTC()
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	c.logger.Debug("SAP booking lookup completed",
		zap.Int("po_numbers", len(poNumbers)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// bookingDateQuery builds the lookup with one @pN parameter per PO number
func bookingDateQuery(poNumbers []string) (string, []interface{}) {
	placeholders := make([]string, len(poNumbers))
	args := make([]interface{}, len(poNumbers))
	for i, po := range poNumbers {
		placeholders[i] = fmt.Sprintf("@p%d", i+1)
		args[i] = po
	}
	query := fmt.Sprintf(
		"SELECT PurchaseOrderNumber, MIN(BookingDate) FROM %s WHERE BookingDate IS NOT NULL AND PurchaseOrderNumber IN (%s) GROUP BY PurchaseOrderNumber",
		SalesOrderTable, strings.Join(placeholders, ", "),
	)
	return query, args
}

// IsEnabled returns true if the client is initialized and ready for queries.
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}

func truncateQuery(query string, maxLen int) string {
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
