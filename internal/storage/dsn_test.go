package storage

import (
	"net/url"
	"testing"
)

func TestWithSearchPath(t *testing.T) {
	tests := []struct {
		name      string
		dsn       string
		expectErr bool
	}{
		{name: "no query", dsn: "postgres://u:p@localhost:5432/db"},
		{name: "keeps existing params", dsn: "postgres://u:p@localhost:5432/db?sslmode=disable"},
		{name: "replaces search_path", dsn: "postgresql://localhost/db?search_path=public"},
		{name: "not a url", dsn: "host=localhost dbname=db", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithSearchPath(tt.dsn, Schema)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			u, err := url.Parse(got)
			if err != nil {
				t.Fatalf("result is not a url: %v", err)
			}
			if sp := u.Query().Get("search_path"); sp != Schema {
				t.Errorf("expected search_path %q, got %q", Schema, sp)
			}
			orig, _ := url.Parse(tt.dsn)
			if mode := orig.Query().Get("sslmode"); mode != "" && u.Query().Get("sslmode") != mode {
				t.Errorf("sslmode dropped from %q", got)
			}
		})
	}
}
