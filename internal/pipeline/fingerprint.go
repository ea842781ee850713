package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// CanonicalizeURL lowercases the host, drops the fragment and strips common
// tracking parameters so the same logical page always maps to one URL.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	paramsToRemovePrefix := []string{"utm_"}
	exactParamsToRemove := []string{
		"fbclid", "gclid", "mc_cid", "mc_eid", "mkt_tok", "ref", "session", "s_cid",
	}

	for k := range q {
		for _, prefix := range paramsToRemovePrefix {
			if strings.HasPrefix(k, prefix) {
				q.Del(k)
			}
		}
	}

	for _, p := range exactParamsToRemove {
		q.Del(p)
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// Fingerprint derives the exact-duplicate hash for an item: SHA-256 over the
// lowercased, whitespace-normalized title plus the canonical URL host+path.
func Fingerprint(title, rawURL string) string {
	canonical := CanonicalizeURL(rawURL)
	hostPath := canonical
	if u, err := url.Parse(canonical); err == nil {
		hostPath = u.Host + strings.TrimSuffix(u.Path, "/")
	}

	normalized := strings.ToLower(cleanText(title)) + "\n" + hostPath
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// shingleText is the text a near-duplicate comparison is computed over:
// title plus the first 400 characters of the body.
func shingleText(title, body string) string {
	return cleanText(strings.ToLower(title + " " + TruncateText(body, 400)))
}

// tokenSet splits text into a set of lowercase alphanumeric tokens.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	}) {
		tok = strings.ToLower(tok)
		if len(tok) < 2 {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// jaccard computes token-set similarity between two sets, in [0,1].
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersect := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			intersect++
		}
	}
	union := len(a) + len(b) - intersect
	if union == 0 {
		return 0
	}
	return float64(intersect) / float64(union)
}
