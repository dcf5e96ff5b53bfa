package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/tidyloom-cli/internal/table"
)

// ErrUnsupportedDriver is returned by Open for drivers other than sqlite and postgres.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// ConnConfig describes a database connection. Trusted connections omit the
// password and rely on the server's own authentication (peer, ident or a
// password file).
type ConnConfig struct {
	Driver   string
	Server   string
	Port     int
	Database string
	User     string
	Password string
	Trusted  bool
	SSLMode  string
}

// DSN renders the driver name and data source string for database/sql.
func (c ConnConfig) DSN() (driver, dsn string, err error) {
	switch strings.ToLower(c.Driver) {
	case "sqlite", "sqlite3", "":
		if c.Database == "" {
			return "", "", fmt.Errorf("%w: sqlite needs a database path", ErrUnsupportedDriver)
		}
		return "sqlite", c.Database, nil
	case "postgres", "postgresql", "pq":
		parts := []string{}
		add := func(k, v string) {
			if v == "" {
				return
			}
			parts = append(parts, k+"="+quoteDSN(v))
		}
		add("host", c.Server)
		if c.Port > 0 {
			add("port", strconv.Itoa(c.Port))
		}
		add("dbname", c.Database)
		add("user", c.User)
		if !c.Trusted {
			add("password", c.Password)
		}
		ssl := c.SSLMode
		if ssl == "" {
			ssl = "disable"
		}
		add("sslmode", ssl)
		return "postgres", strings.Join(parts, " "), nil
	}
	return "", "", fmt.Errorf("%w: %q (use sqlite|postgres)", ErrUnsupportedDriver, c.Driver)
}

// quoteDSN quotes a key/value DSN value when it contains spaces or quotes.
func quoteDSN(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg ConnConfig) (*sql.DB, error) {
	driver, dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return db, nil
}

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query runs a query and returns its result set as a table. Column names come
// from the result set. NULL becomes missing, integers and floats become
// numbers, booleans become 1/0 and timestamps become RFC 3339 strings. Text
// in NUMERIC/DECIMAL columns is parsed as a number.
func Query(ctx context.Context, q Queryer, query string, args ...any) (*table.Table, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	numericText := make([]bool, len(names))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			switch strings.ToUpper(ct.DatabaseTypeName()) {
			case "NUMERIC", "DECIMAL", "MONEY", "REAL", "FLOAT4", "FLOAT8", "INT2", "INT4", "INT8":
				numericText[i] = true
			}
		}
	}

	b := table.NewBuilder(names...)
	dest := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	row := make([]table.Value, len(names))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range dest {
			row[i] = sqlValue(v, numericText[i])
		}
		if err := b.Append(row...); err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	t, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return t, nil
}

func sqlValue(v any, numericText bool) table.Value {
	switch x := v.(type) {
	case nil:
		return table.Missing()
	case int64:
		return table.Num(float64(x))
	case int32:
		return table.Num(float64(x))
	case int:
		return table.Num(float64(x))
	case float64:
		return table.Num(x)
	case float32:
		return table.Num(float64(x))
	case bool:
		if x {
			return table.Num(1)
		}
		return table.Num(0)
	case time.Time:
		return table.Str(x.UTC().Format(time.RFC3339))
	case []byte:
		return textValue(string(x), numericText)
	case string:
		return textValue(x, numericText)
	}
	return table.Str(fmt.Sprint(v))
}

func textValue(s string, numericText bool) table.Value {
	if numericText {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return table.Num(f)
		}
	}
	return table.Str(s)
}
