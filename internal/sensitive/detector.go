// Package sensitive tags clipboard text that looks like a password, API key or
// token. Detection is heuristic and stateless.
package sensitive

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minLength = 8
	maxLength = 500

	entropyMinLength = 16
	entropyThreshold = 4.5

	bearerPrefix = "Bearer "
)

// A Rule is one named entry of the detection catalog.
type Rule struct {
	Name  string
	Match func(s string) bool
}

// knownPrefixes lists issuer-specific secret prefixes. Any exact prefix match
// is enough.
var knownPrefixes = []string{
	"sk-ant-", "sk-proj-", "sk-",
	"sk_live_", "sk_test_", "pk_live_", "pk_test_", "rk_live_", "rk_test_",
	"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_",
	"glpat-", "gldt-", "glrt-",
	"AKIA", "ASIA",
	"xoxb-", "xoxp-", "xoxa-", "xoxr-", "xapp-",
	"AIza", "ya29.",
	"npm_", "pypi-",
	"shpat_", "shpss_", "shpca_", "shppa_",
	"SG.", "sq0atp-", "sq0csp-",
	"dop_v1_", "hf_", "r8_", "gsk_", "xai-", "pplx-",
	"lin_api_", "ntn_", "whsec_", "AGE-SECRET-KEY-",
}

// patterns is evaluated in order after the prefix catalog.
var patterns = []Rule{
	regexpRule("jwt", `^eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*$`),
	regexpRule("aws_access_key_id", `^(AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}$`),
	regexpRule("base64_secret_40", `^[A-Za-z0-9/+=]{40}$`),
	regexpRule("generic_token", `^[A-Za-z0-9_\-]{32,}$`),
	regexpRule("uuid", `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
	regexpRule("hex_secret", `^[0-9a-fA-F]{32,}$`),
	regexpRule("base64", `^[A-Za-z0-9+/]{20,}={0,2}$`),
	regexpRule("private_key", `-----BEGIN[A-Z ]*PRIVATE KEY-----`),
	regexpRule("secret_assignment", `(?i)^(private[_-]?key|secret[_-]?key|client[_-]?secret|api[_-]?key|access[_-]?token|password|passwd)[=:]\S+$`),
	regexpRule("connection_string", `(?i)^(postgres|postgresql|mysql|mariadb|mongodb(\+srv)?|redis|rediss|amqps?|mssql|sqlserver|jdbc:[a-z]+)://\S+$`),
	regexpRule("bearer_token", `^Bearer [A-Za-z0-9\-._~+/]+=*$`),
}

func regexpRule(name, expr string) Rule {
	re := regexp.MustCompile(expr)
	return Rule{Name: name, Match: re.MatchString}
}

// Rules returns the ordered pattern catalog.
func Rules() []Rule {
	out := make([]Rule, len(patterns))
	copy(out, patterns)
	return out
}

// IsSensitive reports whether text should be treated as a secret.
func IsSensitive(text string) bool {
	_, ok := Detect(text)
	return ok
}

// Detect returns the name of the first matching rule.
func Detect(text string) (string, bool) {
	s := strings.TrimSpace(text)

	n := utf8.RuneCountInString(s)
	if n < minLength || n > maxLength {
		return "", false
	}

	if strings.Contains(s, " ") && !strings.HasPrefix(s, bearerPrefix) {
		return "", false
	}

	for _, prefix := range knownPrefixes {
		if strings.HasPrefix(s, prefix) {
			return "prefix:" + prefix, true
		}
	}

	for _, rule := range patterns {
		if rule.Match(s) {
			return rule.Name, true
		}
	}

	if n >= entropyMinLength && looksRandom(s) {
		return "entropy", true
	}
	return "", false
}

func looksRandom(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("_-+=/.", r):
		default:
			return false
		}
	}

	classes := 0
	for _, ok := range []bool{upper, lower, digit} {
		if ok {
			classes++
		}
	}
	if classes < 2 {
		return false
	}
	return Entropy(s) > entropyThreshold
}

// Entropy returns the Shannon entropy of s in bits per character.
func Entropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}

	var h float64
	for _, c := range freq {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// Masked is rendered in place of a locked sensitive value. It has a fixed
// width so the secret's length is not disclosed.
const Masked = "••••••••"
