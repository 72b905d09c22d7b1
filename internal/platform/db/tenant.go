package db

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const TenantKey contextKey = "tenant"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Querier is the read/write surface repositories need; *pgxpool.Pool,
// *pgxpool.Conn and pgx.Tx all satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// TenantContext identifies the tenant a call runs for. It is passed
// explicitly to every repository call; tables are qualified with Schema
// instead of relying on a connection's search_path.
type TenantContext struct {
	ID     string `json:"id"`
	Schema string `json:"schema"`
}

// NewTenantContext validates a tenant identifier and derives its schema.
func NewTenantContext(tenantID string) (TenantContext, error) {
	if !tenantIDPattern.MatchString(tenantID) {
		return TenantContext{}, fmt.Errorf("invalid tenant identifier: %q", tenantID)
	}
	return TenantContext{ID: tenantID, Schema: SchemaName(tenantID)}, nil
}

// SchemaName returns the Postgres schema holding a tenant's tables.
func SchemaName(tenantID string) string {
	return fmt.Sprintf("tenant_%s", tenantID)
}

// Table returns the schema-qualified, quoted name of a tenant table.
func (tc TenantContext) Table(name string) string {
	return pgx.Identifier{tc.Schema, name}.Sanitize()
}

// TenantMiddleware resolves the tenant of each request and stores its
// TenantContext on both the echo context and the request context.
func TenantMiddleware(defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tc, err := NewTenantContext(extractTenantID(c, defaultTenant))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := context.WithValue(c.Request().Context(), TenantKey, tc)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(string(TenantKey), tc)

			return next(c)
		}
	}
}

func extractTenantID(c echo.Context, defaultTenant string) string {
	// 1. Check JWT claim (set by auth middleware)
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}

	// 2. Check X-Tenant-ID header
	if tid := c.Request().Header.Get("X-Tenant-ID"); tid != "" {
		return tid
	}

	// 3. Check query parameter
	if tid := c.QueryParam("tenant_id"); tid != "" {
		return tid
	}

	return defaultTenant
}

// TenantFromContext retrieves the TenantContext stored by TenantMiddleware.
func TenantFromContext(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(TenantKey).(TenantContext)
	return tc, ok
}

// TenantFromEcho retrieves the TenantContext for the current request.
func TenantFromEcho(c echo.Context) (TenantContext, bool) {
	tc, ok := c.Get(string(TenantKey)).(TenantContext)
	if ok {
		return tc, true
	}
	return TenantFromContext(c.Request().Context())
}

// CreateTenantSchema creates the schema of a tenant and applies the
// migrations found in source. A nil source skips migrations.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, source fs.FS) error {
	tc, err := NewTenantContext(tenantID)
	if err != nil {
		return err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{tc.Schema}.Sanitize())
	if err != nil {
		return fmt.Errorf("create schema %s: %w", tc.Schema, err)
	}

	if source != nil {
		if _, err := NewMigrator(pool, source).Up(ctx, tc); err != nil {
			return fmt.Errorf("run migrations for %s: %w", tc.Schema, err)
		}
	}

	return nil
}
