package extract

import "strings"

// Domain recognition consults a validated TLD list instead of trusting the
// bare pattern, so organization names and prose containing a dot do not
// register as domains. The list covers gTLDs, common ccTLDs, and the newer
// generics that show up in threat reports.
var validTLDs = map[string]struct{}{}

func init() {
	for _, tld := range []string{
		// original gTLDs
		"com", "org", "net", "edu", "gov", "mil", "int", "info", "biz",
		"name", "pro", "mobi", "aero", "coop", "museum", "travel", "jobs",
		// common ccTLDs
		"ac", "ae", "af", "ag", "al", "am", "ar", "at", "au", "az", "ba",
		"bd", "be", "bg", "bh", "bo", "br", "by", "bz", "ca", "cc", "ch",
		"cl", "cn", "co", "cr", "cu", "cy", "cz", "de", "dk", "do", "dz",
		"ec", "ee", "eg", "es", "eu", "fi", "fr", "ge", "gg", "gr", "gt",
		"hk", "hn", "hr", "hu", "id", "ie", "il", "im", "in", "iq", "ir",
		"is", "it", "je", "jo", "jp", "ke", "kg", "kh", "kr", "kw", "kz",
		"la", "lb", "li", "lk", "lt", "lu", "lv", "ly", "ma", "md", "me",
		"mk", "mn", "mo", "mt", "mx", "my", "ng", "ni", "nl", "no", "np",
		"nz", "om", "pa", "pe", "ph", "pk", "pl", "ps", "pt", "py", "qa",
		"ro", "rs", "ru", "sa", "se", "sg", "si", "sk", "sn", "sv", "sy",
		"th", "tj", "tk", "tn", "to", "tr", "tt", "tw", "ua", "ug", "uk",
		"us", "uy", "uz", "ve", "vn", "ws", "ye", "za", "zw", "su", "io",
		"ai", "app", "dev",
		// newer generics frequent in malicious registrations
		"xyz", "top", "site", "online", "club", "shop", "store", "tech",
		"space", "live", "life", "world", "today", "email", "link", "click",
		"win", "bid", "loan", "download", "stream", "racing", "party",
		"review", "trade", "date", "faith", "science", "work", "men", "gdn",
		"agency", "network", "systems", "digital", "cloud", "host", "press",
		"website", "icu", "cyou", "rest", "fit", "monster", "quest", "best",
		"one", "run", "pw", "buzz", "cam", "uno", "bar", "sbs", "cfd",
	} {
		validTLDs[tld] = struct{}{}
	}
}

// validTLD reports whether the final label of a dotted name is a known TLD.
func validTLD(domain string) bool {
	idx := strings.LastIndexByte(domain, '.')
	if idx < 0 || idx == len(domain)-1 {
		return false
	}
	_, ok := validTLDs[strings.ToLower(domain[idx+1:])]
	return ok
}
