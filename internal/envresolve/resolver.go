// SPDX-License-Identifier: MPL-2.0

package envresolve

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
)

type (
	// Prober reports whether a candidate location exists.
	// A non-nil error means the probe could not decide; the resolver treats
	// such a candidate as absent and records the error in the attempt list.
	Prober interface {
		Exists(path string) (bool, error)
	}

	// ProberFunc adapts a function to the Prober interface.
	ProberFunc func(path string) (bool, error)

	// FSProber probes the host filesystem with os.Stat.
	FSProber struct{}
)

// Exists calls f(path).
func (f ProberFunc) Exists(path string) (bool, error) { return f(path) }

// Exists reports whether path exists on the host filesystem.
func (FSProber) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Resolve probes the descriptor's candidates in order and records the first
// one that exists. An already-resolved descriptor is returned as-is without
// probing again.
func Resolve(ctx context.Context, d *Descriptor, prober Prober) (Candidate, error) {
	if c, ok := d.Resolved(); ok {
		return c, nil
	}

	if len(d.candidates) == 0 {
		slog.DebugContext(ctx, "activation candidate not found", "env", d.name, "attempts", 0)
	}

	attempts := make([]Attempt, 0, len(d.candidates))
	for _, c := range d.candidates {
		if err := ctx.Err(); err != nil {
			return Candidate{}, err
		}

		found, err := prober.Exists(string(c.Path))
		if found {
			slog.DebugContext(ctx, "activation candidate found", "env", d.name, "path", c.Path, "kind", c.Kind)
			resolved := c
			d.resolved = &resolved
			return c, nil
		}

		slog.DebugContext(ctx, "activation candidate not found", "env", d.name, "path", c.Path, "error", err)
		attempts = append(attempts, Attempt{Candidate: c, Err: err})
	}

	return Candidate{}, &ResolutionError{Environment: d.name, Attempts: attempts}
}
