package app

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/matchday-pipeline/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
)

const (
	dbMaxOpenConns    = 10
	dbMaxIdleConns    = 5
	dbConnMaxIdleTime = 5 * time.Minute

	// tracedQueryLimit caps db.statement span attributes.
	tracedQueryLimit = 512
)

func openDB(cfg config.Config) (*sqlx.DB, error) {
	params := map[string]string{"application_name": cfg.ServiceName}
	if cfg.DBDisablePreparedBinary {
		params["disable_prepared_binary_result"] = "yes"
	}

	db, err := otelsqlx.Open(
		"postgres",
		withDSNParams(cfg.DBURL, params),
		otelsql.WithDBName(dsnDatabase(cfg.DBURL)),
		otelsql.WithQueryFormatter(compactQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxIdleTime(dbConnMaxIdleTime)
	return db, nil
}

// withDSNParams adds params the DSN does not already set. Both URL and
// key=value DSNs are accepted; anything unparseable is returned as is.
func withDSNParams(dsn string, params map[string]string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || len(params) == 0 {
		return dsn
	}

	if strings.Contains(dsn, "://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		query := parsed.Query()
		changed := false
		for key, value := range params {
			if value == "" || query.Has(key) {
				continue
			}
			query.Set(key, value)
			changed = true
		}
		if !changed {
			return dsn
		}
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	present := map[string]bool{}
	for _, field := range strings.Fields(dsn) {
		if key, _, ok := strings.Cut(field, "="); ok {
			present[key] = true
		}
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, key := range slices.Sorted(maps.Keys(params)) {
		value := params[key]
		if value == "" || present[key] {
			continue
		}
		fmt.Fprintf(&b, " %s='%s'", key, strings.ReplaceAll(value, "'", `\'`))
	}
	return b.String()
}

func dsnDatabase(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if strings.Contains(dsn, "://") {
		if parsed, err := url.Parse(dsn); err == nil {
			return strings.Trim(parsed.Path, "/ ")
		}
		return ""
	}
	for _, field := range strings.Fields(dsn) {
		if key, value, ok := strings.Cut(field, "="); ok && key == "dbname" {
			return strings.Trim(value, `"'`)
		}
	}
	return ""
}

// compactQuery collapses whitespace so multi-line statements read as one
// span attribute.
func compactQuery(query string) string {
	compact := strings.Join(strings.Fields(query), " ")
	if len(compact) <= tracedQueryLimit {
		return compact
	}
	return compact[:tracedQueryLimit] + "..."
}
