package extract

import (
	"net"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

var hexOnly = regexp.MustCompile(`^[a-f0-9]+$`)

// hashLengths are the exact hex lengths enforced when hash validation is
// enabled.
var hashLengths = map[domain.IOCType]int{
	domain.MD5:            32,
	domain.SHA1:           40,
	domain.SHA256:         64,
	domain.SHA512:         128,
	domain.ImpHash:        32,
	domain.JA3:            32,
	domain.CertThumbprint: 40,
}

// threatVocab are the words that mark surrounding prose as threat-relevant.
// The filename context gate and the confidence boost both consult it.
var threatVocab = []string{
	"malware", "malicious", "hash", "sample", "ioc", "indicator", "payload",
	"dropper", "trojan", "ransomware", "backdoor", "implant", "c2",
	"command and control", "exfiltrat", "infect", "compromis", "threat",
	"campaign", "apt", "phish", "botnet", "loader", "stealer", "beacon",
}

// commonWords catches sentence fragments that look like filenames: a pair
// of ordinary English words split by a period ("attacks.once") is prose,
// not an artifact.
var commonWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "a", "an", "this", "that", "these", "those", "is", "are",
		"was", "were", "be", "been", "it", "its", "then", "than", "once",
		"when", "where", "while", "after", "before", "during", "attack",
		"attacks", "attacker", "attackers", "system", "systems", "network",
		"networks", "user", "users", "first", "second", "next", "last",
		"new", "old", "data", "file", "files", "here", "there", "also",
		"only", "most", "more", "some", "all", "any", "such", "both",
		"group", "groups", "report", "reports", "time", "times", "so",
		"we", "they", "and", "but", "or", "not", "now", "however",
	} {
		commonWords[w] = struct{}{}
	}
}

func containsThreatVocab(s string) bool {
	s = strings.ToLower(s)
	for _, w := range threatVocab {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

var nearbyHash = regexp.MustCompile(`\b[a-fA-F0-9]{32,128}\b`)

// commonWordPair reports whether a dotted token is two ordinary English
// words, i.e. a sentence fragment rather than a filename. Runs before the
// context gate so obvious prose never reaches it.
func commonWordPair(value string) bool {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 {
		return false
	}
	left := strings.ToLower(value[:idx])
	right := strings.ToLower(value[idx+1:])
	if li := strings.LastIndexByte(left, '.'); li >= 0 {
		left = left[li+1:]
	}
	_, l := commonWords[left]
	_, r := commonWords[right]
	return l && r
}

// filenameContextOK is the context gate for filename-type indicators: a
// bare name.ext match is only accepted when nearby text carries threat
// vocabulary or an adjacent hash literal. Short technical-sounding words in
// prose otherwise produce a high false-positive rate.
func filenameContextOK(window string) bool {
	return containsThreatVocab(window) || nearbyHash.MatchString(window)
}

func privateIPv4(ip netip.Addr) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// validValue applies per-type validation rules. Invalid matches are
// silently dropped, never surfaced as errors: the source text is expected
// to be high-noise analyst material.
func (e *Extractor) validValue(typ domain.IOCType, value string) bool {
	switch typ {
	case domain.MD5, domain.SHA1, domain.SHA256, domain.SHA512,
		domain.ImpHash, domain.JA3, domain.CertThumbprint:
		if !hexOnly.MatchString(strings.ToLower(value)) {
			return false
		}
		if e.cfg.ValidateHashLengths && len(value) != hashLengths[typ] {
			return false
		}
		return true

	case domain.IPv4:
		addr, err := netip.ParseAddr(value)
		if err != nil || !addr.Is4() {
			return false
		}
		if e.cfg.ExcludePrivateIPs && privateIPv4(addr) {
			return false
		}
		return true

	case domain.IPv6:
		addr, err := netip.ParseAddr(value)
		return err == nil && addr.Is6() && !addr.Is4In6()

	case domain.CIDR:
		_, _, err := net.ParseCIDR(value)
		return err == nil

	case domain.Domain:
		if !validTLD(value) || len(value) > 253 {
			return false
		}
		// Dotted-numeric fragments that slipped past the IP patterns.
		if strings.IndexFunc(value, func(r rune) bool {
			return r != '.' && (r < '0' || r > '9')
		}) < 0 {
			return false
		}
		return true

	case domain.PID:
		n, err := strconv.Atoi(value)
		return err == nil && n > 0 && n < 1<<22

	case domain.Email:
		at := strings.IndexByte(value, '@')
		return at > 0 && validTLD(value[at+1:])

	case domain.URL:
		return len(value) >= 10 // scheme plus a host of at least one char

	case domain.BitcoinAddress:
		return len(value) >= 26

	case domain.SSDeep:
		parts := strings.SplitN(value, ":", 3)
		return len(parts) == 3

	default:
		return value != ""
	}
}
