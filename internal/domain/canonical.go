package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Canonicalize produces the byte-deterministic wire string spec §3/§6 defines:
//
//	v1|<domain>|<value>|<currency>|<decimals>|<timestamp>|<nonce>|<sources>|<method>
//
// Sources are lowercased and sorted before joining, independent of the order
// they arrived at the Assertion in. Value is formatted with exactly Decimals
// fractional digits. Timestamp is ISO8601 UTC, second resolution, trailing Z.
func Canonicalize(a Assertion) string {
	sources := make([]string, len(a.Sources))
	for i, s := range a.Sources {
		sources[i] = strings.ToLower(s)
	}
	sort.Strings(sources)

	return fmt.Sprintf(
		"v1|%s|%s|%s|%d|%s|%s|%s|%s",
		a.Domain,
		a.Value.StringFixed(a.Decimals),
		a.Currency,
		a.Decimals,
		a.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		a.Nonce,
		strings.Join(sources, ","),
		a.Method,
	)
}
