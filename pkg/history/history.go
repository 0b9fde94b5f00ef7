// Package history records completed pipeline runs so that verdicts can be
// listed and fetched after the fact.
//
// Adapters live in subpackages: memory (bounded LRU) and postgres (pgx).
package history

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
)

// Sentinel errors for history operations.
var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another tenant.
	ErrNotFound = errors.New("verification not found")

	// ErrConflict is returned when a record with the given ID already exists.
	ErrConflict = errors.New("verification already exists")
)

// Kind distinguishes full pipeline runs from verify-only runs.
type Kind string

const (
	KindGenerate Kind = "generate"
	KindVerify   Kind = "verify"
)

// Record is one completed pipeline invocation. Records are write-once.
type Record struct {
	ID        string               `json:"id"`
	Kind      Kind                 `json:"kind"`
	Backend   string               `json:"backend,omitempty"`
	Model     string               `json:"model,omitempty"`
	Task      string               `json:"task,omitempty"`
	Language  api.Language         `json:"language"`
	Path      string               `json:"file_path,omitempty"`
	Verdict   api.ExecutionVerdict `json:"verdict"`
	CreatedAt time.Time            `json:"created_at"`
	Tenant    string               `json:"-"`
}

// ListOptions filters and pages a List call. Results are newest first.
type ListOptions struct {
	Kind     Kind
	Language api.Language

	// After is the ID of the last record of the previous page.
	After string

	// Limit defaults to 20 and is capped at 100.
	Limit int
}

// EffectiveLimit returns the page size after defaults and caps.
func (o ListOptions) EffectiveLimit() int {
	switch {
	case o.Limit <= 0:
		return 20
	case o.Limit > 100:
		return 100
	default:
		return o.Limit
	}
}

// Page is one page of records.
type Page struct {
	Object  string    `json:"object"`
	Data    []*Record `json:"data"`
	FirstID string    `json:"first_id,omitempty"`
	LastID  string    `json:"last_id,omitempty"`
	HasMore bool      `json:"has_more"`
}

// NewPage builds a Page from up to limit+1 records, newest first.
func NewPage(records []*Record, limit int) *Page {
	p := &Page{Object: "list", Data: records}
	if len(records) > limit {
		p.Data = records[:limit]
		p.HasMore = true
	}
	if p.Data == nil {
		p.Data = []*Record{}
	}
	if len(p.Data) > 0 {
		p.FirstID = p.Data[0].ID
		p.LastID = p.Data[len(p.Data)-1].ID
	}
	return p
}

// Store persists records. Reads are scoped to the tenant in the context;
// an empty tenant sees every record.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, opts ListOptions) (*Page, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Matches reports whether rec passes the tenant and filter criteria.
func Matches(rec *Record, tenant string, opts ListOptions) bool {
	if tenant != "" && rec.Tenant != tenant {
		return false
	}
	if opts.Kind != "" && rec.Kind != opts.Kind {
		return false
	}
	if opts.Language != "" && rec.Language != opts.Language {
		return false
	}
	return true
}
