// Package extract implements the pattern-based IOC extraction engine: an
// ordered regular-expression cascade over ~30 indicator types with defang
// normalization, per-type validation, and confidence scoring. The engine is
// stateless and safe for concurrent use.
package extract

import (
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hive-corporation/harrier/internal/core/domain"
	"github.com/hive-corporation/harrier/internal/metrics"
)

// Config controls the optional validation rules.
type Config struct {
	// ValidateHashLengths enforces exact hex lengths per hash type.
	ValidateHashLengths bool
	// ExcludePrivateIPs drops RFC1918, loopback, and link-local IPv4.
	ExcludePrivateIPs bool
	// ContextWindow is the number of characters captured around a match,
	// and the radius of the filename context gate.
	ContextWindow int
}

// DefaultConfig returns the validation rules used in production.
func DefaultConfig() Config {
	return Config{
		ValidateHashLengths: true,
		ExcludePrivateIPs:   true,
		ContextWindow:       100,
	}
}

type Extractor struct {
	cfg    Config
	logger *zap.SugaredLogger
}

func NewExtractor(cfg Config, logger *zap.SugaredLogger) *Extractor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 100
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract pulls indicators out of free text. It never fails: malformed
// input yields an empty or partial result set, and invalid matches are
// dropped silently.
func (e *Extractor) Extract(text, sourceLocation string) []domain.IOC {
	return e.ExtractFrom(text, sourceLocation, domain.SourceText)
}

// ExtractFrom is Extract with an explicit source channel (e.g. image OCR
// output, which starts at a lower confidence than direct text).
func (e *Extractor) ExtractFrom(text, sourceLocation string, channel domain.SourceChannel) []domain.IOC {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	defer metrics.StartExtractionTimer().ObserveDuration()
	text = Refang(text)
	now := time.Now().UTC()

	// claimed tracks every accepted value case-insensitively: a value
	// accepted under one type is skipped for all subsequent types.
	claimed := make(map[string]struct{})
	results := make(map[string]domain.IOC)
	var order []string

	accept := func(typ domain.IOCType, value, window string) {
		conf := e.confidence(typ, channel, window)
		ioc := domain.IOC{
			ID:             uuid.NewString(),
			Type:           typ,
			Value:          value,
			Confidence:     conf,
			Source:         channel,
			SourceLocation: sourceLocation,
			Context:        window,
			FirstSeen:      now,
			LastSeen:       now,
			TLP:            domain.TLPAmber,
		}
		key := ioc.Key()
		if prev, ok := results[key]; ok {
			// Same (type, value) twice: higher confidence wins, never
			// the reverse.
			if conf.Outranks(prev.Confidence) {
				results[key] = ioc
			}
			return
		}
		results[key] = ioc
		order = append(order, key)
		claimed[strings.ToLower(value)] = struct{}{}
	}

	for _, tp := range cascade {
		for _, pat := range tp.patterns {
			for _, m := range pat.re.FindAllStringSubmatchIndex(text, -1) {
				start, end := m[0], m[1]
				if pat.group > 0 && len(m) > 2*pat.group+1 && m[2*pat.group] >= 0 {
					start, end = m[2*pat.group], m[2*pat.group+1]
				}
				value := normalizeValue(tp.typ, text[start:end])
				if value == "" {
					continue
				}
				if _, dup := claimed[strings.ToLower(value)]; dup {
					continue
				}
				if !e.validValue(tp.typ, value) {
					continue
				}
				window := contextWindow(text, start, end, e.cfg.ContextWindow)
				if tp.typ == domain.Filename {
					if commonWordPair(value) || !filenameContextOK(window) {
						continue
					}
				}
				accept(tp.typ, value, window)
				switch tp.typ {
				case domain.URL:
					e.claimURLHost(value, window, claimed, accept)
				case domain.CIDR:
					// Claim the base address too, so the later IP passes
					// cannot surface it as a second indicator.
					if base, _, ok := strings.Cut(value, "/"); ok {
						claimed[strings.ToLower(base)] = struct{}{}
					}
				}
			}
		}
	}

	out := make([]domain.IOC, 0, len(order))
	for _, key := range order {
		out = append(out, results[key])
	}
	e.logger.Debugw("extraction finished",
		"source", sourceLocation, "indicators", len(out))
	return out
}

// claimURLHost surfaces the host of an accepted URL as its own indicator
// and claims it, so the permissive domain pass cannot re-match it later.
func (e *Extractor) claimURLHost(raw, window string, claimed map[string]struct{}, accept func(domain.IOCType, string, string)) {
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return
	}
	if _, dup := claimed[host]; dup {
		return
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Is4() && e.validValue(domain.IPv4, host) {
			accept(domain.IPv4, host, window)
		}
		return
	}
	if e.validValue(domain.Domain, host) {
		accept(domain.Domain, host, window)
	}
}

// confidence derives a quantized level from the source channel, the
// surrounding vocabulary, and (for hashes) strict length validation.
func (e *Extractor) confidence(typ domain.IOCType, channel domain.SourceChannel, window string) domain.Confidence {
	score := 70
	switch channel {
	case domain.SourceImage:
		score = 55 // OCR output is noisier than pasted text
	case domain.SourceMetadata:
		score = 60
	}
	if containsThreatVocab(window) {
		score += 10
	}
	if _, isHash := hashLengths[typ]; isHash && e.cfg.ValidateHashLengths {
		score += 10
	}
	switch {
	case score >= 80:
		return domain.ConfidenceHigh
	case score >= 60:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// normalizeValue canonicalizes a matched value per type before validation
// and deduplication.
func normalizeValue(typ domain.IOCType, value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, `"'`)
	switch typ {
	case domain.MD5, domain.SHA1, domain.SHA256, domain.SHA512,
		domain.ImpHash, domain.JA3, domain.CertThumbprint, domain.CertSerial:
		return strings.ToLower(value)
	case domain.CVE, domain.ASN:
		return strings.ToUpper(value)
	case domain.Domain, domain.Email:
		return strings.TrimSuffix(strings.ToLower(value), ".")
	case domain.URL:
		value = strings.ToLower(value)
		value = strings.TrimRight(value, ".,;")
		return strings.TrimSuffix(value, "/")
	case domain.MAC:
		return strings.ToLower(strings.ReplaceAll(value, "-", ":"))
	default:
		return value
	}
}

// contextWindow returns the text surrounding a match, whitespace-collapsed.
func contextWindow(text string, start, end, radius int) string {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	return strings.Join(strings.Fields(text[lo:hi]), " ")
}
