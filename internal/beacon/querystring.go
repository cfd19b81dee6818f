package beacon

import (
	"net/url"
	"sort"
	"strings"
)

// Abbreviated query parameter keys of the GET wire format.
const (
	KeyVersion       = "v"
	KeyCustomerID    = "id"
	KeyPageID        = "sid"
	KeySessionID     = "uid"
	KeyPageLabel     = "l"
	KeyHostname      = "HN"
	KeyPathname      = "PN"
	KeyFlags         = "fl"
	KeyCustomData    = "CD"
	KeyNavTiming     = "NT"
	KeyPageStats     = "PS"
	KeyUserTiming    = "UT"
	KeyElementTiming = "ET"
	KeyCPU           = "CPU"
	KeyCLS           = "CLS"
	KeyFID           = "FID"
	KeyINP           = "INP"
	KeyInteraction   = "IX"
	KeyLongTasks     = "LT"
)

// Query builds the GET beacon query string. Parameters keep insertion
// order so the serialized URL is deterministic, unlike a map-backed
// url.Values.
type Query struct {
	keys   []string
	values map[string]string
}

func NewQuery() *Query {
	return &Query{values: make(map[string]string)}
}

// Add sets key to value. Empty values are skipped; setting the same key
// again overwrites in place.
func (q *Query) Add(key, value string) *Query {
	if value == "" {
		return q
	}
	if _, exists := q.values[key]; !exists {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value
	return q
}

// Has reports whether key was added.
func (q *Query) Has(key string) bool {
	_, ok := q.values[key]
	return ok
}

// Encode serializes the parameters onto baseURL.
func (q *Query) Encode(baseURL string) string {
	var sb strings.Builder
	sb.WriteString(baseURL)
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	for _, key := range q.keys {
		sb.WriteString(sep)
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(url.QueryEscape(q.values[key]))
		sep = "&"
	}
	return sb.String()
}

// StripDelimiters removes the reserved tuple delimiters from a free-text
// value. The format strips rather than escapes, so "a,b|c" becomes "abc".
func StripDelimiters(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	return strings.ReplaceAll(s, "|", "")
}

// EncodeTuples joins key|value[|value2] tuples with commas, the repeated-
// entry encoding used by CD, UT, IX and CPU fields.
func EncodeTuples(tuples [][]string) string {
	parts := make([]string, 0, len(tuples))
	for _, t := range tuples {
		clean := make([]string, len(t))
		for i, v := range t {
			clean[i] = StripDelimiters(v)
		}
		parts = append(parts, strings.Join(clean, "|"))
	}
	return strings.Join(parts, ",")
}

// EncodeCustomData encodes a custom-data map deterministically, sorted by
// key.
func EncodeCustomData(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tuples := make([][]string, 0, len(keys))
	for _, k := range keys {
		tuples = append(tuples, []string{k, data[k]})
	}
	return EncodeTuples(tuples)
}
