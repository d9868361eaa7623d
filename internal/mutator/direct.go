package mutator

import (
	"context"
	"time"

	"github.com/krunaldodiya/tcc-manager/internal/ir"
	"github.com/krunaldodiya/tcc-manager/internal/store"
)

// DirectBackend writes the user store itself.
type DirectBackend struct {
	writer *store.Writer
	now    func() time.Time
}

// NewDirectBackend creates a DirectBackend over writer. A nil now uses
// time.Now.
func NewDirectBackend(writer *store.Writer, now func() time.Time) *DirectBackend {
	if now == nil {
		now = time.Now
	}
	return &DirectBackend{writer: writer, now: now}
}

// Name implements Backend.
func (b *DirectBackend) Name() string { return "direct" }

// Apply implements Backend.
func (b *DirectBackend) Apply(ctx context.Context, action Action, service ir.ServiceKind, identifier string) error {
	if action == ActionGrant {
		return b.writer.Upsert(ctx, ir.NewGrantRecord(service, identifier, b.now().Unix()))
	}
	return b.writer.Delete(ctx, service.StoreKey(), identifier)
}
