package crawl

import "sort"

// supportedLanguages is the fixed set of ISO-639-1 codes the search API
// accepts. Requests for any other code fail before the network is touched.
var supportedLanguages = map[string]struct{}{
	"ar": {},
	"da": {},
	"de": {},
	"en": {},
	"es": {},
	"fr": {},
	"hi": {},
	"id": {},
	"it": {},
	"ja": {},
	"ko": {},
	"nl": {},
	"pl": {},
	"pt": {},
	"ru": {},
	"sv": {},
	"tr": {},
	"zh": {},
}

// IsSupportedLanguage reports whether code is a member of the supported set.
func IsSupportedLanguage(code string) bool {
	_, ok := supportedLanguages[code]
	return ok
}

// SupportedLanguages returns the supported codes in sorted order.
func SupportedLanguages() []string {
	out := make([]string, 0, len(supportedLanguages))
	for code := range supportedLanguages {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
