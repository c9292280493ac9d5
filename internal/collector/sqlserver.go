// Package collector talks to a live SQL Server: it executes queries, captures
// execution plans and reads catalog and statistics views.
package collector

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/mssqlspectre/internal/models"
	"github.com/ppiankov/mssqlspectre/pkg/config"
)

// DefaultQueryTimeout bounds each individual round trip when the config
// does not override it.
const DefaultQueryTimeout = 30 * time.Second

// Client handles SQL Server connections and queries.
type Client struct {
	db      *sql.DB
	timeout time.Duration
}

// New opens a SQL Server connection pool from the configured DSN.
func New(cfg *config.Config) (*Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "connection string is empty")
	}

	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlserver connection")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pinging sqlserver")
	}

	if cfg.Verbose {
		logrus.WithField("dsn", MaskDSN(cfg.DSN)).Debug("connected to SQL Server")
	}

	return &Client{db: db, timeout: timeout}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// withTimeout bounds one round trip.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// EngineVersion returns the server's version banner.
func (c *Client) EngineVersion(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT @@VERSION").Scan(&version); err != nil {
		return "", errors.Wrap(err, "querying @@VERSION")
	}
	return strings.TrimSpace(version), nil
}

// ExecuteCount runs the query, reads every row of every result set and
// returns the total row count.
func (c *Client) ExecuteCount(ctx context.Context, query string) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return 0, errors.Wrap(err, "executing query")
	}
	defer rows.Close()

	var count int64
	for {
		for rows.Next() {
			count++
		}
		if err := rows.Err(); err != nil {
			return 0, errors.Wrap(err, "reading result rows")
		}
		if !rows.NextResultSet() {
			break
		}
	}
	return count, nil
}

// EstimatedPlan returns the estimated execution plan without running the
// statement.
func (c *Client) EstimatedPlan(ctx context.Context, query string) (string, error) {
	return c.capturePlan(ctx, query, "SET SHOWPLAN_XML ON", "SET SHOWPLAN_XML OFF")
}

// ActualPlan executes the statement and returns the post-execution plan.
func (c *Client) ActualPlan(ctx context.Context, query string) (string, error) {
	return c.capturePlan(ctx, query, "SET STATISTICS XML ON", "SET STATISTICS XML OFF")
}

// capturePlan toggles plan capture on a dedicated session, runs the query
// and collects every plan document the server interleaves with the results.
// The toggle is session state, so everything must happen on one connection.
func (c *Client) capturePlan(ctx context.Context, query, enable, disable string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return "", errors.Wrap(err, "acquiring connection")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, enable); err != nil {
		return "", errors.Wrapf(err, "executing %s", enable)
	}
	defer func() {
		if _, err := conn.ExecContext(ctx, disable); err != nil {
			logrus.WithError(err).Debugf("failed to execute %s", disable)
		}
	}()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return "", errors.Wrap(err, "executing query with plan capture")
	}
	defer rows.Close()

	var plans strings.Builder
	for {
		cols, err := rows.Columns()
		if err != nil {
			return "", errors.Wrap(err, "reading result columns")
		}
		if isPlanResultSet(cols) {
			for rows.Next() {
				var fragment string
				if err := rows.Scan(&fragment); err != nil {
					return "", errors.Wrap(err, "scanning plan fragment")
				}
				plans.WriteString(fragment)
			}
		} else {
			// drain ordinary result rows
			for rows.Next() {
			}
		}
		if err := rows.Err(); err != nil {
			return "", errors.Wrap(err, "reading plan result set")
		}
		if !rows.NextResultSet() {
			break
		}
	}
	return plans.String(), nil
}

// isPlanResultSet reports whether a result set carries a showplan document.
// The server names the single column after the showplan schema.
func isPlanResultSet(cols []string) bool {
	if len(cols) != 1 {
		return false
	}
	name := strings.ToLower(cols[0])
	return strings.Contains(name, "showplan")
}

// QueryStats looks up engine-side aggregate statistics for a cached query
// with matching text. Returns sql.ErrNoRows via the wrap chain when the
// query has no cache entry.
func (c *Client) QueryStats(ctx context.Context, query string) (models.EngineStats, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	const statsQuery = `
		SELECT TOP 1
			qs.total_logical_reads * 1.0 / qs.execution_count,
			qs.total_physical_reads * 1.0 / qs.execution_count,
			qs.total_worker_time / 1000.0 / qs.execution_count,
			qs.total_rows * 1.0 / qs.execution_count,
			qs.execution_count,
			cp.objtype
		FROM sys.dm_exec_query_stats qs
		CROSS APPLY sys.dm_exec_sql_text(qs.sql_handle) st
		LEFT JOIN sys.dm_exec_cached_plans cp ON cp.plan_handle = qs.plan_handle
		WHERE st.text LIKE '%' + @query + '%'
		ORDER BY qs.last_execution_time DESC`

	var stats models.EngineStats
	var cacheType sql.NullString
	err := c.db.QueryRowContext(ctx, statsQuery, sql.Named("query", statsMatchFragment(query))).Scan(
		&stats.AvgLogicalReads,
		&stats.AvgPhysicalReads,
		&stats.AvgCPUTimeMs,
		&stats.AvgRows,
		&stats.ExecutionCount,
		&cacheType,
	)
	if err != nil {
		return models.EngineStats{}, errors.Wrap(err, "querying dm_exec_query_stats")
	}
	stats.CacheObjectType = cacheType.String
	return stats, nil
}

// statsMatchFragment trims the query down to a fragment suitable for a LIKE
// match against dm_exec_sql_text, which stores the raw batch text.
func statsMatchFragment(query string) string {
	fragment := strings.TrimSpace(query)
	if len(fragment) > 256 {
		fragment = fragment[:256]
	}
	return fragment
}

// IndexColumns returns every (index, column) pair defined on a table, key
// columns and included columns alike. Unknown tables yield no rows.
func (c *Client) IndexColumns(ctx context.Context, schema, table string) ([]models.IndexCatalogColumn, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	const catalogQuery = `
		SELECT i.index_id, i.name, col.name, ic.key_ordinal, ic.is_included_column, ic.is_descending_key
		FROM sys.indexes i
		JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
		JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
		WHERE i.object_id = OBJECT_ID(@schema + '.' + @table)
		  AND i.name IS NOT NULL
		ORDER BY i.index_id, ic.is_included_column, ic.key_ordinal`

	rows, err := c.db.QueryContext(ctx, catalogQuery,
		sql.Named("schema", schema), sql.Named("table", table))
	if err != nil {
		return nil, errors.Wrapf(err, "querying index catalog for %s.%s", schema, table)
	}
	defer rows.Close()

	var columns []models.IndexCatalogColumn
	for rows.Next() {
		var col models.IndexCatalogColumn
		if err := rows.Scan(&col.IndexID, &col.IndexName, &col.ColumnName, &col.KeyOrdinal, &col.IsIncluded, &col.Descending); err != nil {
			return nil, errors.Wrap(err, "scanning index catalog row")
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading index catalog rows")
	}
	return columns, nil
}

// IndexUsage returns usage counters and size for one index from the usage
// statistics views. Indexes the server has never touched have no row there;
// that surfaces as an error the caller is expected to degrade on.
func (c *Client) IndexUsage(ctx context.Context, schema, table, index string) (models.IndexUsageStats, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	const usageQuery = `
		SELECT
			us.user_seeks, us.user_scans, us.user_lookups,
			ISNULL(ps.used_page_count, 0) * 8,
			ISNULL((SELECT MAX(v) FROM (VALUES (us.last_user_seek), (us.last_user_scan), (us.last_user_lookup)) AS value(v)), '19000101')
		FROM sys.dm_db_index_usage_stats us
		JOIN sys.indexes i ON us.object_id = i.object_id AND us.index_id = i.index_id
		LEFT JOIN sys.dm_db_partition_stats ps ON ps.object_id = us.object_id AND ps.index_id = us.index_id
		WHERE us.database_id = DB_ID()
		  AND us.object_id = OBJECT_ID(@schema + '.' + @table)
		  AND i.name = @index`

	var stats models.IndexUsageStats
	err := c.db.QueryRowContext(ctx, usageQuery,
		sql.Named("schema", schema), sql.Named("table", table), sql.Named("index", index)).Scan(
		&stats.Seeks, &stats.Scans, &stats.Lookups, &stats.SizeKB, &stats.LastUsed)
	if err != nil {
		return models.IndexUsageStats{}, errors.Wrapf(err, "querying usage stats for index %s", index)
	}
	return stats, nil
}
