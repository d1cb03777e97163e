// SPDX-License-Identifier: MPL-2.0

package envresolve

import "slices"

// Descriptor names an environment and the ordered locations that may
// activate it. It is built fresh for one launcher invocation; the resolved
// candidate is recorded once and never re-probed.
type Descriptor struct {
	name       string
	candidates []Candidate
	resolved   *Candidate
}

// NewDescriptor creates an unresolved descriptor. The candidate slice is
// copied so later caller mutations cannot reorder resolution.
func NewDescriptor(name string, candidates []Candidate) *Descriptor {
	return &Descriptor{
		name:       name,
		candidates: slices.Clone(candidates),
	}
}

// Name returns the environment name.
func (d *Descriptor) Name() string { return d.name }

// Candidates returns a copy of the candidate list in priority order.
func (d *Descriptor) Candidates() []Candidate { return slices.Clone(d.candidates) }

// Resolved returns the resolved candidate, if resolution has succeeded.
func (d *Descriptor) Resolved() (Candidate, bool) {
	if d.resolved == nil {
		return Candidate{}, false
	}
	return *d.resolved, true
}

// ResolvedPath returns the resolved activation path or "" when unresolved.
func (d *Descriptor) ResolvedPath() string {
	if d.resolved == nil {
		return ""
	}
	return string(d.resolved.Path)
}
