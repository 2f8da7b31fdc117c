package storage

import (
	"fmt"
	"net/url"
)

// Schema holds every storefront table.
const Schema = "storefront"

// WithSearchPath sets the search_path runtime parameter on a Postgres URL so
// every pooled connection resolves unqualified tables in schema.
func WithSearchPath(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("parse postgres url: unexpected scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
