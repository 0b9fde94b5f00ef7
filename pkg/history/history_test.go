package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/rhuss/codesmith/pkg/api"
)

func TestSetGetTenant(t *testing.T) {
	ctx := context.Background()
	if got := GetTenant(ctx); got != "" {
		t.Errorf("GetTenant(empty ctx) = %q, want empty", got)
	}

	ctx = SetTenant(ctx, "tenant-abc")
	if got := GetTenant(ctx); got != "tenant-abc" {
		t.Errorf("GetTenant = %q, want %q", got, "tenant-abc")
	}

	ctx = SetTenant(ctx, "tenant-xyz")
	if got := GetTenant(ctx); got != "tenant-xyz" {
		t.Errorf("GetTenant = %q, want %q", got, "tenant-xyz")
	}
}

func TestGetTenant_NoCollision(t *testing.T) {
	ctx := context.WithValue(context.Background(), "tenant", "wrong")
	if got := GetTenant(ctx); got != "" {
		t.Errorf("GetTenant should not match string key, got %q", got)
	}
}

func TestEffectiveLimit(t *testing.T) {
	tests := []struct{ in, want int }{{0, 20}, {-3, 20}, {5, 5}, {100, 100}, {500, 100}}
	for _, tt := range tests {
		if got := (ListOptions{Limit: tt.in}).EffectiveLimit(); got != tt.want {
			t.Errorf("EffectiveLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewPage(t *testing.T) {
	var recs []*Record
	for i := range 3 {
		recs = append(recs, &Record{ID: fmt.Sprintf("ver_%d", i)})
	}

	p := NewPage(recs, 2)
	if !p.HasMore || len(p.Data) != 2 {
		t.Fatalf("page = %+v, want 2 records with has_more", p)
	}
	if p.FirstID != "ver_0" || p.LastID != "ver_1" {
		t.Errorf("first/last = %q/%q", p.FirstID, p.LastID)
	}

	empty := NewPage(nil, 20)
	if empty.Data == nil || len(empty.Data) != 0 || empty.HasMore {
		t.Errorf("empty page = %+v", empty)
	}
}

func TestMatches(t *testing.T) {
	rec := &Record{Kind: KindVerify, Language: api.LanguagePython, Tenant: "a"}
	tests := []struct {
		name   string
		tenant string
		opts   ListOptions
		want   bool
	}{
		{"no filter", "", ListOptions{}, true},
		{"same tenant", "a", ListOptions{}, true},
		{"other tenant", "b", ListOptions{}, false},
		{"kind match", "", ListOptions{Kind: KindVerify}, true},
		{"kind mismatch", "", ListOptions{Kind: KindGenerate}, false},
		{"language mismatch", "", ListOptions{Language: api.LanguageGo}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(rec, tt.tenant, tt.opts); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}
