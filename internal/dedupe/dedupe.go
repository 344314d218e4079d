// Package dedupe removes duplicate records from a batch using a composite
// key built from a configurable field subset. Deduplication is stateless
// and idempotent; an optional seen-value cache extends detection across
// jobs.
package dedupe

import (
	"context"
	"strings"

	"github.com/hive-corporation/harrier/internal/core/domain"
	"github.com/hive-corporation/harrier/internal/core/ports"
)

type Deduplicator struct {
	cache ports.SeenValueCache // nil disables cross-job detection
}

func New(cache ports.SeenValueCache) *Deduplicator {
	return &Deduplicator{cache: cache}
}

// Key builds the composite duplicate-detection key for one record. The
// value component is case-folded so normalization differences never mask a
// duplicate.
func Key(rec domain.RawRecord, fields []domain.DuplicateField) string {
	if len(fields) == 0 {
		fields = []domain.DuplicateField{domain.DupFieldValue}
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		switch f {
		case domain.DupFieldValue:
			parts = append(parts, strings.ToLower(strings.TrimSpace(rec.Value)))
		case domain.DupFieldType:
			parts = append(parts, string(rec.DeclaredType()))
		case domain.DupFieldContext:
			parts = append(parts, strings.ToLower(strings.TrimSpace(rec.Context())))
		}
	}
	return strings.Join(parts, "\x1f")
}

// Dedupe returns the records surviving duplicate removal and the number
// removed. Within a batch the first occurrence wins. Cache errors are
// treated as "not seen": cross-job detection is best-effort and must never
// fail a batch.
func (d *Deduplicator) Dedupe(ctx context.Context, records []domain.RawRecord, fields []domain.DuplicateField) ([]domain.RawRecord, int) {
	seen := make(map[string]struct{}, len(records))
	survivors := make([]domain.RawRecord, 0, len(records))
	removed := 0

	for _, rec := range records {
		key := Key(rec, fields)
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		if d.cache != nil {
			if hit, err := d.cache.Seen(ctx, key); err == nil && hit {
				removed++
				continue
			}
		}
		seen[key] = struct{}{}
		survivors = append(survivors, rec)
	}

	if d.cache != nil {
		for key := range seen {
			_ = d.cache.Mark(ctx, key)
		}
	}
	return survivors, removed
}
