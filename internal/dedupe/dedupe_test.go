package dedupe

import (
	"context"
	"testing"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

func rec(value, typ, ctx string) domain.RawRecord {
	return domain.RawRecord{
		Value:  value,
		Fields: map[string]string{"type": typ, "context": ctx},
	}
}

func TestDedupeByValue(t *testing.T) {
	d := New(nil)
	records := []domain.RawRecord{
		rec("1.2.3.4", "ipv4", "a"),
		rec("1.2.3.4", "ipv4", "b"),
		rec("EVIL.com", "domain", ""),
		rec("evil.com", "domain", ""),
	}
	out, removed := d.Dedupe(context.Background(), records, []domain.DuplicateField{domain.DupFieldValue})
	if len(out) != 2 || removed != 2 {
		t.Fatalf("got %d survivors, %d removed; want 2/2", len(out), removed)
	}
	// First occurrence wins.
	if out[1].Value != "EVIL.com" {
		t.Errorf("expected first occurrence to survive, got %q", out[1].Value)
	}
}

func TestDedupeCompositeKey(t *testing.T) {
	d := New(nil)
	records := []domain.RawRecord{
		rec("1.2.3.4", "ipv4", "report A"),
		rec("1.2.3.4", "ipv4", "report B"),
	}

	fields := []domain.DuplicateField{domain.DupFieldValue, domain.DupFieldContext}
	out, removed := d.Dedupe(context.Background(), records, fields)
	if len(out) != 2 || removed != 0 {
		t.Errorf("different contexts should both survive, got %d/%d", len(out), removed)
	}

	fields = []domain.DuplicateField{domain.DupFieldValue, domain.DupFieldType}
	out, removed = d.Dedupe(context.Background(), records, fields)
	if len(out) != 1 || removed != 1 {
		t.Errorf("same value+type should collapse, got %d/%d", len(out), removed)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	d := New(nil)
	records := []domain.RawRecord{
		rec("a.com", "domain", ""),
		rec("a.com", "domain", ""),
		rec("b.com", "domain", ""),
	}
	fields := []domain.DuplicateField{domain.DupFieldValue, domain.DupFieldType}

	once, _ := d.Dedupe(context.Background(), records, fields)
	twice, removed := d.Dedupe(context.Background(), once, fields)
	if removed != 0 {
		t.Errorf("re-running on deduplicated input removed %d records", removed)
	}
	if len(twice) != len(once) {
		t.Errorf("idempotence violated: %d != %d", len(twice), len(once))
	}
}

type fakeCache struct {
	seen map[string]bool
}

func (c *fakeCache) Seen(_ context.Context, key string) (bool, error) { return c.seen[key], nil }
func (c *fakeCache) Mark(_ context.Context, key string) error {
	c.seen[key] = true
	return nil
}

func TestDedupeCrossJobCache(t *testing.T) {
	cache := &fakeCache{seen: map[string]bool{}}
	d := New(cache)
	fields := []domain.DuplicateField{domain.DupFieldValue}

	first := []domain.RawRecord{rec("1.2.3.4", "", "")}
	out, removed := d.Dedupe(context.Background(), first, fields)
	if len(out) != 1 || removed != 0 {
		t.Fatalf("first job: %d/%d", len(out), removed)
	}

	// A later job uploading the same value hits the cache.
	out, removed = d.Dedupe(context.Background(), first, fields)
	if len(out) != 0 || removed != 1 {
		t.Errorf("second job should drop cached value, got %d/%d", len(out), removed)
	}
}
