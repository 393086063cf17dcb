// Package journal keeps a history of connection lifecycle events.
//
// The client records an Event whenever a connect attempt finishes, the
// connection drops or a reconnect episode starts or ends. The history is
// for diagnostics only; recording failures are logged by the caller and
// never affect the connection.
package journal

import (
	"context"
	"embed"
	"io/fs"
	"time"
)

// Kind identifies a lifecycle event.
type Kind string

// Lifecycle event kinds.
const (
	KindConnected          Kind = "connected"
	KindConnectFailed      Kind = "connect_failed"
	KindDisconnected       Kind = "disconnected"
	KindReconnectStarted   Kind = "reconnect_started"
	KindReconnectSucceeded Kind = "reconnect_succeeded"
	KindReconnectExhausted Kind = "reconnect_exhausted"
)

// Event is one journal entry.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	ClientID  string    `json:"client_id"`
	Attempt   int       `json:"attempt,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which events List returns.
type Filter struct {
	Kind     Kind   // optional
	ClientID string // optional
	Limit    int    // default 50, max 500
	Offset   int
}

// ListResult is one page of events, most recent first.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Recorder stores lifecycle events.
type Recorder interface {
	Record(ctx context.Context, ev *Event) error
}

// Repository is a Recorder that can also be queried.
type Repository interface {
	Recorder
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the schema migrations for the journal tables, for use
// with database.DB.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err) // directory is embedded at build time
	}
	return sub
}
