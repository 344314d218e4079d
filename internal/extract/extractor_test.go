package extract

import (
	"strings"
	"testing"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

func newTestExtractor() *Extractor {
	return NewExtractor(DefaultConfig(), nil)
}

func findByType(iocs []domain.IOC, typ domain.IOCType) []domain.IOC {
	var out []domain.IOC
	for _, i := range iocs {
		if i.Type == typ {
			out = append(out, i)
		}
	}
	return out
}

func TestExtractBasicTypes(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name  string
		text  string
		typ   domain.IOCType
		value string
	}{
		{"ipv4", "traffic to 203.0.113.7 observed", domain.IPv4, "203.0.113.7"},
		{"cidr", "scan range 198.51.100.0/24 flagged", domain.CIDR, "198.51.100.0/24"},
		{"md5", "dropped file with md5 d41d8cd98f00b204e9800998ecf8427e", domain.MD5, "d41d8cd98f00b204e9800998ecf8427e"},
		{"sha256", "payload " + strings.Repeat("ab", 32) + " uploaded", domain.SHA256, strings.Repeat("ab", 32)},
		{"cve", "exploits cve-2024-12345 in the wild", domain.CVE, "CVE-2024-12345"},
		{"url", "beacon to https://evil-c2.example.com/gate.php observed", domain.URL, "https://evil-c2.example.com/gate.php"},
		{"email", "phishing from payload-drop@bad-actor.ru inbox", domain.Email, "payload-drop@bad-actor.ru"},
		{"registry", `persistence via HKLM\Software\Microsoft\Windows\CurrentVersion\Run`, domain.RegistryKey, `HKLM\Software\Microsoft\Windows\CurrentVersion\Run`},
		{"domain", "malware contacting update.badcdn.xyz daily", domain.Domain, "update.badcdn.xyz"},
		{"mac", "rogue device at 00:1A:2B:3C:4D:5E on vlan", domain.MAC, "00:1a:2b:3c:4d:5e"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iocs := e.Extract(tt.text, "test")
			matches := findByType(iocs, tt.typ)
			if len(matches) != 1 {
				t.Fatalf("expected 1 %s, got %d (all: %+v)", tt.typ, len(matches), iocs)
			}
			if matches[0].Value != tt.value {
				t.Errorf("value = %q, want %q", matches[0].Value, tt.value)
			}
		})
	}
}

func TestCIDRSuppressesBaseAddress(t *testing.T) {
	e := newTestExtractor()

	iocs := e.Extract("blocked range 198.51.100.0/24 at the edge", "test")
	if got := findByType(iocs, domain.CIDR); len(got) != 1 || got[0].Value != "198.51.100.0/24" {
		t.Fatalf("cidr extraction = %+v, want 198.51.100.0/24", got)
	}
	// The base address belongs to the range; it must not surface as a
	// standalone address too.
	if got := findByType(iocs, domain.IPv4); len(got) != 0 {
		t.Errorf("base address leaked as ipv4: %+v", got)
	}
	if len(iocs) != 1 {
		t.Errorf("expected exactly one indicator, got %+v", iocs)
	}
}

func TestExtractLabeledPatternsStripLabel(t *testing.T) {
	e := newTestExtractor()

	sha1 := "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"
	iocs := e.Extract("SHA1: "+sha1+" and PID: 4412 for the malware process", "test")

	got := findByType(iocs, domain.SHA1)
	if len(got) != 1 || got[0].Value != sha1 {
		t.Fatalf("sha1 extraction = %+v, want value %s", got, sha1)
	}
	pids := findByType(iocs, domain.PID)
	if len(pids) != 1 || pids[0].Value != "4412" {
		t.Fatalf("pid extraction = %+v, want 4412", pids)
	}
}

func TestHashLengthValidation(t *testing.T) {
	e := newTestExtractor()

	// Exactly 40 hex chars validates as sha1.
	valid := strings.Repeat("a1", 20)
	if got := findByType(e.Extract("found "+valid+" on disk", "t"), domain.SHA1); len(got) != 1 {
		t.Fatalf("40-char hex should extract as sha1, got %+v", got)
	}

	// 39 and 41 must not.
	for _, bad := range []string{strings.Repeat("a", 39), strings.Repeat("a", 41)} {
		iocs := e.Extract("found "+bad+" on disk", "t")
		if got := findByType(iocs, domain.SHA1); len(got) != 0 {
			t.Errorf("%d-char hex must not validate as sha1: %+v", len(bad), got)
		}
	}
}

func TestDefangRoundTrip(t *testing.T) {
	e := newTestExtractor()

	pairs := []struct {
		defanged string
		clean    string
		typ      domain.IOCType
	}{
		{"1[.]2[.]3[.]4", "1.2.3.4", domain.IPv4},
		{"hxxp://evil[.]example[.]com/a", "http://evil.example.com/a", domain.URL},
		{"admin[at]evil[.]org", "admin@evil.org", domain.Email},
	}

	for _, p := range pairs {
		a := e.Extract("indicator "+p.defanged+" reported", "t")
		b := e.Extract("indicator "+p.clean+" reported", "t")
		ga, gb := findByType(a, p.typ), findByType(b, p.typ)
		if len(ga) != 1 || len(gb) != 1 {
			t.Fatalf("%s: expected one %s from both forms, got %d/%d", p.defanged, p.typ, len(ga), len(gb))
		}
		if ga[0].Value != gb[0].Value {
			t.Errorf("%s: defanged extracts %q, clean extracts %q", p.defanged, ga[0].Value, gb[0].Value)
		}
	}
}

func TestFilenameContextGate(t *testing.T) {
	e := newTestExtractor()

	// Bare token with no threat-relevant context: nothing.
	if iocs := e.Extract("evil.exe", "t"); len(iocs) != 0 {
		t.Fatalf("bare filename with no context must yield zero IOCs, got %+v", iocs)
	}

	// Same token next to threat vocabulary: exactly one filename.
	iocs := e.Extract("sha256 hash of the malware sample evil.exe", "t")
	got := findByType(iocs, domain.Filename)
	if len(got) != 1 || got[0].Value != "evil.exe" {
		t.Fatalf("filename with context = %+v, want one evil.exe", got)
	}
}

func TestCommonWordPairRejected(t *testing.T) {
	e := newTestExtractor()
	// "attacks.once" is a sentence fragment even when threat vocabulary is
	// nearby; the word-pair heuristic runs before the context gate.
	iocs := e.Extract("the malware attacks.Once inside, it spreads", "t")
	if got := findByType(iocs, domain.Filename); len(got) != 0 {
		t.Errorf("sentence fragment extracted as filename: %+v", got)
	}
	if got := findByType(iocs, domain.Domain); len(got) != 0 {
		t.Errorf("sentence fragment extracted as domain: %+v", got)
	}
}

func TestDomainRequiresValidTLD(t *testing.T) {
	e := newTestExtractor()
	iocs := e.Extract("contact Acme.Corporation for details", "t")
	if got := findByType(iocs, domain.Domain); len(got) != 0 {
		t.Errorf("prose with a dot must not extract as domain: %+v", got)
	}
}

func TestPrivateIPExcluded(t *testing.T) {
	e := newTestExtractor()
	iocs := e.Extract("lateral movement from 192.168.1.10 and 10.0.0.5", "t")
	if got := findByType(iocs, domain.IPv4); len(got) != 0 {
		t.Errorf("private addresses must be excluded: %+v", got)
	}

	open := NewExtractor(Config{ValidateHashLengths: true}, nil)
	iocs = open.Extract("lateral movement from 192.168.1.10", "t")
	if got := findByType(iocs, domain.IPv4); len(got) != 1 {
		t.Errorf("with exclusion off, private address should extract: %+v", got)
	}
}

func TestNoDuplicateTypeValuePairs(t *testing.T) {
	e := newTestExtractor()
	text := "c2 at 203.0.113.7, again 203.0.113.7, and 203.0.113.7 once more"
	iocs := e.Extract(text, "t")

	seen := map[string]bool{}
	for _, ioc := range iocs {
		if seen[ioc.Key()] {
			t.Fatalf("duplicate (type,value) pair in result: %s", ioc.Key())
		}
		seen[ioc.Key()] = true
	}
}

func TestHashNotReclaimedAsDomain(t *testing.T) {
	e := newTestExtractor()
	sha := strings.Repeat("ab", 32)
	iocs := e.Extract("sample "+sha+" seen", "t")
	if got := findByType(iocs, domain.Domain); len(got) != 0 {
		t.Errorf("hash must not register as a spurious domain: %+v", got)
	}
}

func TestURLHostClaimed(t *testing.T) {
	e := newTestExtractor()
	iocs := e.Extract("callback to http://drop.badcdn.xyz/p.bin from the implant", "t")

	doms := findByType(iocs, domain.Domain)
	if len(doms) != 1 || doms[0].Value != "drop.badcdn.xyz" {
		t.Fatalf("URL host should surface exactly once as domain, got %+v", doms)
	}
}

func TestImageSourceLowersConfidence(t *testing.T) {
	e := newTestExtractor()
	text := "observed 203.0.113.9 in screenshot"
	fromText := e.Extract(text, "t")
	fromImage := e.ExtractFrom(text, "t", domain.SourceImage)

	if len(fromText) != 1 || len(fromImage) != 1 {
		t.Fatalf("expected one IOC per channel, got %d/%d", len(fromText), len(fromImage))
	}
	if !fromText[0].Confidence.Outranks(fromImage[0].Confidence) {
		t.Errorf("text confidence %s should outrank image confidence %s",
			fromText[0].Confidence, fromImage[0].Confidence)
	}
}

func TestExtractNeverPanicsOnGarbage(t *testing.T) {
	e := newTestExtractor()
	inputs := []string{
		"", "   ", "\x00\x01\x02", strings.Repeat(".", 10000),
		"][)(*&^%$#@!", strings.Repeat("a:", 5000),
	}
	for _, in := range inputs {
		_ = e.Extract(in, "garbage")
	}
}
