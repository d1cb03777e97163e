// SPDX-License-Identifier: MPL-2.0

// Package envresolve locates the activation mechanism of a named conda
// environment on the host.
//
// Resolution probes an ordered list of candidate locations and selects the
// first one that exists. Probing goes through the Prober interface, so the
// order and outcome can be tested without touching a real filesystem:
//
//	d := envresolve.NewDescriptor("cadgen", envresolve.DefaultCandidates(runtime.GOOS, home, os.Getenv))
//	c, err := envresolve.Resolve(ctx, d, envresolve.FSProber{})
//
// Resolution never activates anything; it only checks for existence.
package envresolve
