package ports

import (
	"context"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

// Enricher is the out-of-scope enrichment collaborator, invoked once per
// successfully processed IOC. Implementations must honor the context
// deadline; the engine marks items failed when the deadline is exceeded.
type Enricher interface {
	Enrich(ctx context.Context, ioc domain.IOC) (map[string]any, error)
	Name() string
}

// SeenValueCache tracks duplicate keys across jobs. A nil cache disables
// cross-job duplicate detection; lookups are best-effort and a cache error
// is treated as "not seen".
type SeenValueCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}
