// Package watcher is the parent-side agent: it subscribes to the relay,
// keeps only updates for the family codes it watches, maintains a durable
// per-child location cache, and raises SOS alerts locally.
package watcher

// CodeSet is the set of family codes a watcher cares about. The relay
// broadcasts everything; filtering is the subscriber's job.
type CodeSet map[string]struct{}

func NewCodeSet(codes ...string) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		if c != "" {
			s[c] = struct{}{}
		}
	}
	return s
}

// Allows reports whether code belongs to the set. An empty set allows
// nothing: a parent with no registered children sees no traffic.
func (s CodeSet) Allows(code string) bool {
	if code == "" {
		return false
	}
	_, ok := s[code]
	return ok
}
