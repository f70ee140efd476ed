// Package textutil holds the deterministic text primitives the pipeline is
// built on: content hashing, URL normalization, tokenization, and keyword
// extraction. Nothing here touches the network or the database.
package textutil

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	ellipsis      = "…"
	unknownBucket = "unknown"
	dateBucketFmt = "2006-01-02"
)

// hostRegex is the conservative fallback for domain extraction when URL
// parsing fails.
var hostRegex = regexp.MustCompile(`(?i)^(?:[a-z][a-z0-9+.-]*://)?(?:[^/@]+@)?([^/:?#]+)`)

// NormalizeURL lowercases scheme, host, and path, strips a trailing slash,
// and discards query and fragment. Unparseable URLs are lowercased and
// trimmed as-is so hashing stays deterministic.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
	}

	normalized := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + strings.ToLower(u.Path)

	return strings.TrimRight(normalized, "/")
}

// ContentHash derives the dedup key for a fetched item. When the feed
// supplied an external id the hash covers url|externalID|""; otherwise it
// covers url|lowercased-title|publishedDateBucket (or "unknown").
func ContentHash(rawURL, externalID, title string, publishedAt time.Time) string {
	var material string

	if externalID != "" {
		material = NormalizeURL(rawURL) + "|" + externalID + "|"
	} else {
		bucket := unknownBucket
		if !publishedAt.IsZero() {
			bucket = publishedAt.UTC().Format(dateBucketFmt)
		}

		material = NormalizeURL(rawURL) + "|" + strings.ToLower(title) + "|" + bucket
	}

	sum := sha256.Sum256([]byte(material))

	return hex.EncodeToString(sum[:])
}

// ExtractDomain returns the host of a URL minus a leading "www.".
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err == nil && u.Host != "" {
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}

	m := hostRegex.FindStringSubmatch(strings.TrimSpace(rawURL))
	if len(m) < 2 {
		return ""
	}

	return strings.TrimPrefix(strings.ToLower(m[1]), "www.")
}

// LockKey maps a cluster fingerprint to an advisory lock key. The first 60
// bits of the SHA-256 keep the value inside the signed 64-bit range Postgres
// expects.
func LockKey(fingerprint string) int64 {
	sum := sha256.Sum256([]byte(fingerprint))

	return int64(binary.BigEndian.Uint64(sum[:8]) >> 4)
}

// Truncate bounds s to limit runes, appending an ellipsis marker inside the
// limit when the value overflows. Required fields never go to empty.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	if limit == 1 {
		return ellipsis
	}

	return string(runes[:limit-1]) + ellipsis
}
