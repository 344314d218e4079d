package domain

import (
	"strings"
	"time"
)

type IOCType string

// Network indicators
const (
	IPv4      IOCType = "ipv4"
	IPv6      IOCType = "ipv6"
	CIDR      IOCType = "cidr"
	Domain    IOCType = "domain"
	URL       IOCType = "url"
	Email     IOCType = "email"
	MAC       IOCType = "mac_address"
	ASN       IOCType = "asn"
	UserAgent IOCType = "user_agent"
)

// File indicators
const (
	MD5      IOCType = "md5"
	SHA1     IOCType = "sha1"
	SHA256   IOCType = "sha256"
	SHA512   IOCType = "sha512"
	SSDeep   IOCType = "ssdeep"
	ImpHash  IOCType = "imphash"
	Filename IOCType = "filename"
	FilePath IOCType = "filepath"
)

// Registry indicators
const (
	RegistryKey   IOCType = "registry_key"
	RegistryValue IOCType = "registry_value"
)

// Process indicators
const (
	ProcessName   IOCType = "process_name"
	PID           IOCType = "pid"
	CommandLine   IOCType = "command_line"
	ServiceName   IOCType = "service_name"
	Mutex         IOCType = "mutex"
	ScheduledTask IOCType = "scheduled_task"
)

// Certificate indicators
const (
	CertSerial     IOCType = "cert_serial"
	CertThumbprint IOCType = "cert_thumbprint"
)

// Vulnerability and other indicators
const (
	CVE            IOCType = "cve"
	BitcoinAddress IOCType = "bitcoin_address"
	JA3            IOCType = "ja3_fingerprint"
	YaraRule       IOCType = "yara_rule"
)

type IOCGroup string

const (
	GroupNetwork       IOCGroup = "network"
	GroupFile          IOCGroup = "file"
	GroupRegistry      IOCGroup = "registry"
	GroupProcess       IOCGroup = "process"
	GroupCertificate   IOCGroup = "certificate"
	GroupVulnerability IOCGroup = "vulnerability"
	GroupOther         IOCGroup = "other"
)

var iocGroups = map[IOCType]IOCGroup{
	IPv4: GroupNetwork, IPv6: GroupNetwork, CIDR: GroupNetwork,
	Domain: GroupNetwork, URL: GroupNetwork, Email: GroupNetwork,
	MAC: GroupNetwork, ASN: GroupNetwork, UserAgent: GroupNetwork,
	MD5: GroupFile, SHA1: GroupFile, SHA256: GroupFile, SHA512: GroupFile,
	SSDeep: GroupFile, ImpHash: GroupFile, Filename: GroupFile, FilePath: GroupFile,
	RegistryKey: GroupRegistry, RegistryValue: GroupRegistry,
	ProcessName: GroupProcess, PID: GroupProcess, CommandLine: GroupProcess,
	ServiceName: GroupProcess, Mutex: GroupProcess, ScheduledTask: GroupProcess,
	CertSerial: GroupCertificate, CertThumbprint: GroupCertificate,
	CVE:            GroupVulnerability,
	BitcoinAddress: GroupOther, JA3: GroupOther, YaraRule: GroupOther,
}

// Group returns the category an IOC type belongs to.
func (t IOCType) Group() IOCGroup {
	if g, ok := iocGroups[t]; ok {
		return g
	}
	return GroupOther
}

// ValidIOCType reports whether t is one of the known indicator types.
func ValidIOCType(t IOCType) bool {
	_, ok := iocGroups[t]
	return ok
}

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Score maps a confidence level onto a 0-100 scale.
func (c Confidence) Score() int {
	switch c {
	case ConfidenceHigh:
		return 90
	case ConfidenceMedium:
		return 70
	default:
		return 40
	}
}

// Outranks reports whether c is a strictly higher confidence than other.
func (c Confidence) Outranks(other Confidence) bool {
	return c.Score() > other.Score()
}

// SourceChannel identifies where an indicator was extracted from.
type SourceChannel string

const (
	SourceText     SourceChannel = "text"
	SourceImage    SourceChannel = "image"
	SourceMetadata SourceChannel = "metadata"
)

// TLP is the Traffic Light Protocol sensitivity marking.
type TLP string

const (
	TLPWhite TLP = "white"
	TLPGreen TLP = "green"
	TLPAmber TLP = "amber"
	TLPRed   TLP = "red"
)

// IOC is a single indicator of compromise. Records are immutable once
// created; a later sighting with higher confidence replaces the earlier
// one rather than mutating it.
type IOC struct {
	ID             string        `json:"id"`
	Type           IOCType       `json:"type"`
	Value          string        `json:"value"`
	Confidence     Confidence    `json:"confidence"`
	Source         SourceChannel `json:"source"`
	SourceLocation string        `json:"source_location,omitempty"`
	Context        string        `json:"context,omitempty"`
	FirstSeen      time.Time     `json:"first_seen"`
	LastSeen       time.Time     `json:"last_seen"`
	Tags           []string      `json:"tags,omitempty"`
	Malicious      *bool         `json:"malicious,omitempty"`
	TLP            TLP           `json:"tlp,omitempty"`
}

// Key returns the identity used for same-result deduplication:
// type plus case-folded value.
func (i IOC) Key() string {
	return string(i.Type) + ":" + strings.ToLower(i.Value)
}
