package extract

import (
	"regexp"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

// pattern is one compiled expression for an IOC type. When group is
// non-zero the indicator payload lives in that submatch; labeled human
// patterns ("SHA1: <hex>", "PID: 1234") use it to strip the label.
type pattern struct {
	re    *regexp.Regexp
	group int
}

type typePatterns struct {
	typ      domain.IOCType
	patterns []pattern
}

// cascade is evaluated strictly in order. Hashes and process/command-line/
// file artifacts come before generic network indicators, and domains come
// last of the structural categories: the domain pattern is the most
// permissive and would otherwise swallow substrings already claimed by a
// stricter, higher-value type. Do not reorder.
var cascade = []typePatterns{
	{domain.SHA512, []pattern{
		{re: regexp.MustCompile(`(?i)\bsha-?512\s*(?:hash)?\s*[:=]?\s*([a-f0-9]{128})\b`), group: 1},
		{re: regexp.MustCompile(`\b[a-fA-F0-9]{128}\b`)},
	}},
	{domain.SHA256, []pattern{
		{re: regexp.MustCompile(`(?i)\bsha-?256\s*(?:hash)?\s*[:=]?\s*([a-f0-9]{64})\b`), group: 1},
		{re: regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)},
	}},
	{domain.CertThumbprint, []pattern{
		{re: regexp.MustCompile(`(?i)\b(?:cert(?:ificate)?\s+)?thumbprint\s*[:=]\s*([a-f0-9]{40})\b`), group: 1},
	}},
	{domain.SHA1, []pattern{
		{re: regexp.MustCompile(`(?i)\bsha-?1\s*(?:hash)?\s*[:=]?\s*([a-f0-9]{40})\b`), group: 1},
		{re: regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)},
	}},
	{domain.ImpHash, []pattern{
		{re: regexp.MustCompile(`(?i)\bimphash\s*[:=]\s*([a-f0-9]{32})\b`), group: 1},
	}},
	{domain.JA3, []pattern{
		{re: regexp.MustCompile(`(?i)\bja3s?\s*(?:hash|fingerprint)?\s*[:=]\s*([a-f0-9]{32})\b`), group: 1},
	}},
	{domain.MD5, []pattern{
		{re: regexp.MustCompile(`(?i)\bmd-?5\s*(?:hash)?\s*[:=]?\s*([a-f0-9]{32})\b`), group: 1},
		{re: regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)},
	}},
	{domain.SSDeep, []pattern{
		{re: regexp.MustCompile(`\b\d{1,10}:[A-Za-z0-9/+]{3,}:[A-Za-z0-9/+]{3,}\b`)},
	}},
	{domain.CertSerial, []pattern{
		{re: regexp.MustCompile(`(?i)\bserial\s*(?:number)?\s*[:=]\s*([a-f0-9]{2}(?::[a-f0-9]{2}){7,19})\b`), group: 1},
	}},
	{domain.RegistryKey, []pattern{
		{re: regexp.MustCompile(`(?i)\b(?:HKEY_LOCAL_MACHINE|HKEY_CURRENT_USER|HKEY_CLASSES_ROOT|HKEY_USERS|HKEY_CURRENT_CONFIG|HKLM|HKCU|HKCR|HKU)\\[^\s"',;]+`)},
	}},
	{domain.RegistryValue, []pattern{
		{re: regexp.MustCompile(`(?i)\b(?:registry\s+value|value\s+name)\s*[:=]\s*"?([\w ._-]{2,64})"?`), group: 1},
	}},
	{domain.CommandLine, []pattern{
		{re: regexp.MustCompile(`(?i)\b(?:command[ _-]?line|cmdline)\s*[:=]\s*([^\r\n]{4,300})`), group: 1},
		{re: regexp.MustCompile(`(?i)\b(?:cmd\.exe\s*/c|powershell(?:\.exe)?\s+-\w+)[^\r\n]{0,260}`)},
	}},
	{domain.FilePath, []pattern{
		{re: regexp.MustCompile(`\b[A-Za-z]:\\(?:[\w\-. $~]+\\)*[\w\-. $~]+`)},
		{re: regexp.MustCompile(`(?:^|\s)(/(?:usr|bin|sbin|etc|tmp|var|home|opt|root|dev|proc)(?:/[\w\-.]+)+)`), group: 1},
	}},
	{domain.ProcessName, []pattern{
		{re: regexp.MustCompile(`(?i)\b(?:parent\s+)?process\s*(?:name)?\s*[:=]\s*"?([\w.\-]{2,64}\.exe)"?`), group: 1},
	}},
	{domain.PID, []pattern{
		{re: regexp.MustCompile(`(?i)\bpid\s*[:=#]?\s*(\d{1,7})\b`), group: 1},
	}},
	{domain.ServiceName, []pattern{
		{re: regexp.MustCompile(`(?i)\bservice\s*(?:name)?\s*[:=]\s*"?([\w.\-]{2,64})"?`), group: 1},
	}},
	{domain.Mutex, []pattern{
		{re: regexp.MustCompile(`(?i)\bmutex\s*(?:name)?\s*[:=]\s*"?([\w\\{}.\-]{3,80})"?`), group: 1},
		{re: regexp.MustCompile(`\b(?:Global|Local)\\[\w{}.\-]{3,60}\b`)},
	}},
	{domain.ScheduledTask, []pattern{
		{re: regexp.MustCompile(`(?i)\bscheduled\s+task\s*(?:name)?\s*[:=]\s*"?([\w\\ .\-]{2,80})"?`), group: 1},
		{re: regexp.MustCompile(`(?i)\bschtasks(?:\.exe)?\s+/create\s+/tn\s+"?([\w\\ .\-]{2,80})"?`), group: 1},
	}},
	{domain.YaraRule, []pattern{
		{re: regexp.MustCompile(`(?m)^\s*rule\s+([A-Za-z_]\w{2,120})\s*(?::[\w\s,]+)?\{`), group: 1},
	}},
	{domain.CVE, []pattern{
		{re: regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`)},
	}},
	{domain.Filename, []pattern{
		{re: regexp.MustCompile(`(?i)\b[\w\-]{1,80}\.(?:exe|dll|ps1|psm1|bat|cmd|vbs|vbe|js|jse|wsf|jar|class|doc|docx|docm|xls|xlsx|xlsm|ppt|pptx|pdf|rtf|zip|rar|7z|gz|tar|scr|sys|drv|tmp|bin|dat|elf|so|sh|py|pl|php|asp|aspx|jsp|apk|ipa|dmg|iso|img|lnk|hta|cpl|msi|msp|ocx|pif)\b`)},
	}},
	{domain.URL, []pattern{
		{re: regexp.MustCompile(`(?i)\bhttps?://[^\s"'<>\)\]]+`)},
		{re: regexp.MustCompile(`(?i)\bftp://[^\s"'<>\)\]]+`)},
	}},
	{domain.Email, []pattern{
		{re: regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)},
	}},
	{domain.CIDR, []pattern{
		{re: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}/\d{1,2}\b`)},
	}},
	{domain.IPv4, []pattern{
		{re: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	}},
	{domain.IPv6, []pattern{
		{re: regexp.MustCompile(`\b(?:[a-fA-F0-9]{1,4}:){2,7}(?:[a-fA-F0-9]{1,4}|:)\b`)},
	}},
	{domain.MAC, []pattern{
		{re: regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`)},
	}},
	{domain.ASN, []pattern{
		{re: regexp.MustCompile(`\bAS\d{2,6}\b`)},
	}},
	{domain.UserAgent, []pattern{
		{re: regexp.MustCompile(`(?i)\buser[- ]agent\s*[:=]\s*([^\r\n]{8,256})`), group: 1},
	}},
	{domain.BitcoinAddress, []pattern{
		{re: regexp.MustCompile(`\b(?:bc1[a-z0-9]{20,59}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})\b`)},
	}},
	// Domains go last: see the ordering note above.
	{domain.Domain, []pattern{
		{re: regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9\-]{0,61}[a-z0-9])?\.)+[a-z]{2,24}\b`)},
	}},
}
