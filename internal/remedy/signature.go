package remedy

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Signature is the stable identity of one error across analysis passes.
// Hashing the summary keeps set comparisons cheap even when summaries carry
// long assertion text.
type Signature uint64

// SignatureOf computes the signature of a record from its summary, falling
// back to the raw message when no summary was extracted.
func SignatureOf(r *ErrorRecord) Signature {
	s := r.Summary
	if s == "" {
		s = r.Message
	}
	return Signature(xxhash.Sum64String(strings.TrimSpace(s)))
}

// SignatureSet maps signatures back to their summaries so progress reports
// can name what disappeared or survived.
type SignatureSet map[Signature]string

// Signatures collects the signature set of a batch of records.
func Signatures(records []*ErrorRecord) SignatureSet {
	set := make(SignatureSet, len(records))
	for _, r := range records {
		set[SignatureOf(r)] = r.ShortSummary()
	}
	return set
}

// Resolved returns the summaries present in the receiver but absent from
// after, sorted for stable output. A non-empty result means at least one
// original error disappeared.
func (s SignatureSet) Resolved(after SignatureSet) []string {
	var gone []string
	for sig, summary := range s {
		if _, still := after[sig]; !still {
			gone = append(gone, summary)
		}
	}
	sort.Strings(gone)
	return gone
}

// Summaries returns all summaries in the set, sorted.
func (s SignatureSet) Summaries() []string {
	out := make([]string, 0, len(s))
	for _, summary := range s {
		out = append(out, summary)
	}
	sort.Strings(out)
	return out
}
