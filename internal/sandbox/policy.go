package sandbox

import "strings"

// DefaultDenylist holds the terms rejected by the policy check.
var DefaultDenylist = []string{"import", "require"}

// Policy is a case-sensitive substring denylist over raw source.
// It runs before evaluation and is not an isolation boundary on its own.
type Policy struct {
	Deny []string
}

// Check returns a *PolicyError for the first denylisted term found in code.
func (p Policy) Check(code string) error {
	for _, term := range p.Deny {
		if term != "" && strings.Contains(code, term) {
			return &PolicyError{Term: term}
		}
	}
	return nil
}
