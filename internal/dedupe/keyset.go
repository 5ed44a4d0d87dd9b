// Package dedupe partitions candidate contacts into genuinely new records and
// suspected duplicates of the authoritative CRM export.
package dedupe

import "github.com/sells-group/crm-dedupe/internal/source"

// KeySet is the set of match keys present in the authoritative source. It is
// built once and only read afterwards.
type KeySet map[string]struct{}

// NewKeySet collects the keys of entries. Empty keys are ignored.
func NewKeySet(entries []source.Entry) KeySet {
	ks := make(KeySet, len(entries))
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		ks[e.Key] = struct{}{}
	}
	return ks
}

// Has reports whether key is in the set.
func (ks KeySet) Has(key string) bool {
	_, ok := ks[key]
	return ok
}

// Len returns the number of distinct keys.
func (ks KeySet) Len() int { return len(ks) }
