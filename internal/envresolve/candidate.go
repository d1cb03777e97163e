// SPDX-License-Identifier: MPL-2.0

package envresolve

import (
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/cadstart/cadstart/pkg/platform"
	"github.com/cadstart/cadstart/pkg/types"
)

const (
	// KindShellHook is a POSIX shell hook such as <root>/etc/profile.d/conda.sh.
	KindShellHook CandidateKind = "shell-hook"
	// KindBatchHook is a Windows batch activator such as <root>\Scripts\activate.bat.
	KindBatchHook CandidateKind = "batch-hook"
	// KindPrefix is a conda root directory activated without running any script.
	KindPrefix CandidateKind = "prefix"
)

// ErrInvalidCandidateKind is the sentinel error wrapped by InvalidCandidateKindError.
var ErrInvalidCandidateKind = errors.New("invalid candidate kind")

type (
	// CandidateKind tells the activation layer how to use a resolved candidate.
	CandidateKind string

	// InvalidCandidateKindError is returned when a CandidateKind is not recognized.
	InvalidCandidateKindError struct {
		Value CandidateKind
	}

	// Candidate is one location that may provide environment activation.
	Candidate struct {
		Path types.FilesystemPath
		Kind CandidateKind
	}
)

// Error implements the error interface.
func (e *InvalidCandidateKindError) Error() string {
	return fmt.Sprintf("invalid candidate kind %q (valid: shell-hook, batch-hook, prefix)", e.Value)
}

// Unwrap returns ErrInvalidCandidateKind for errors.Is() compatibility.
func (e *InvalidCandidateKindError) Unwrap() error { return ErrInvalidCandidateKind }

// Validate returns an error if the kind is not one of the defined kinds.
func (k CandidateKind) Validate() error {
	switch k {
	case KindShellHook, KindBatchHook, KindPrefix:
		return nil
	default:
		return &InvalidCandidateKindError{Value: k}
	}
}

// String returns the string representation of the CandidateKind.
func (k CandidateKind) String() string { return string(k) }

// Validate returns an error if the candidate path or kind is invalid.
func (c Candidate) Validate() error {
	return errors.Join(c.Path.Validate(), c.Kind.Validate())
}

// String returns "<path> (<kind>)".
func (c Candidate) String() string {
	return fmt.Sprintf("%s (%s)", c.Path, c.Kind)
}

// CandidateFromPath infers the candidate kind from the file name:
// .bat/.cmd files are batch hooks, .sh files and bare "activate" scripts are
// shell hooks, anything else is treated as a conda root directory.
func CandidateFromPath(p string) Candidate {
	base := strings.ToLower(p[strings.LastIndexAny(p, `/\`)+1:])
	kind := KindPrefix
	switch {
	case strings.HasSuffix(base, ".bat"), strings.HasSuffix(base, ".cmd"):
		kind = KindBatchHook
	case strings.HasSuffix(base, ".sh"), base == "activate":
		kind = KindShellHook
	}
	return Candidate{Path: types.FilesystemPath(p), Kind: kind}
}

var percentVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_()]*)%`)

// ExpandPath expands a leading "~", $VAR / ${VAR} and Windows %VAR%
// references in a configured candidate path. Unknown variables expand to "".
func ExpandPath(p, home string, getenv func(string) string) string {
	if p == "~" {
		p = home
	} else if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		p = home + p[1:]
	}
	p = percentVar.ReplaceAllStringFunc(p, func(m string) string {
		return getenv(m[1 : len(m)-1])
	})
	if strings.Contains(p, "$") {
		p = os.Expand(p, getenv)
	}
	return p
}

// DefaultCandidates returns the prioritized candidate list for a host:
// per-user installs first, then system-wide installs, then the install that
// CONDA_EXE points at. Paths are built with the target OS separator so the
// list for one OS can be produced (and tested) on another.
func DefaultCandidates(goos, home string, getenv func(string) string) []Candidate {
	if goos == platform.Windows {
		return windowsCandidates(home, getenv)
	}
	return posixCandidates(goos, home, getenv)
}

var distributions = []string{"miniconda3", "anaconda3", "miniforge3", "mambaforge"}

func windowsCandidates(home string, getenv func(string) string) []Candidate {
	join := func(elem ...string) string { return strings.Join(elem, `\`) }
	hook := func(root string) Candidate {
		return Candidate{Path: types.FilesystemPath(join(root, "Scripts", "activate.bat")), Kind: KindBatchHook}
	}

	var roots []string
	if profile := firstNonEmpty(getenv("USERPROFILE"), home); profile != "" {
		for _, dist := range distributions {
			roots = append(roots, join(profile, dist))
		}
	}
	if local := getenv("LOCALAPPDATA"); local != "" {
		roots = append(roots, join(local, "miniconda3"), join(local, "anaconda3"))
	}
	programData := firstNonEmpty(getenv("ProgramData"), `C:\ProgramData`)
	roots = append(roots, join(programData, "miniconda3"), join(programData, "anaconda3"))

	candidates := make([]Candidate, 0, len(roots)+1)
	for _, root := range roots {
		candidates = append(candidates, hook(root))
	}
	// CONDA_EXE is <root>\Scripts\conda.exe (or <root>\condabin\conda.bat).
	if exe := getenv("CONDA_EXE"); exe != "" {
		if i := strings.LastIndex(exe, `\`); i > 0 {
			if j := strings.LastIndex(exe[:i], `\`); j > 0 {
				candidates = appendUnique(candidates, hook(exe[:j]))
			}
		}
	}
	return candidates
}

func posixCandidates(goos, home string, getenv func(string) string) []Candidate {
	hook := func(root string) Candidate {
		return Candidate{Path: types.FilesystemPath(path.Join(root, "etc", "profile.d", "conda.sh")), Kind: KindShellHook}
	}

	var roots []string
	if home != "" {
		for _, dist := range distributions {
			roots = append(roots, path.Join(home, dist))
		}
	}
	roots = append(roots, "/opt/conda", "/opt/miniconda3", "/opt/anaconda3", "/usr/local/miniconda3")
	if goos == platform.Darwin {
		roots = append(roots, "/opt/homebrew/Caskroom/miniconda/base", "/usr/local/Caskroom/miniconda/base")
	}

	candidates := make([]Candidate, 0, len(roots)+1)
	for _, root := range roots {
		candidates = append(candidates, hook(root))
	}
	// CONDA_EXE is <root>/bin/conda.
	if exe := getenv("CONDA_EXE"); exe != "" {
		candidates = appendUnique(candidates, hook(path.Dir(path.Dir(exe))))
	}
	return candidates
}

func appendUnique(list []Candidate, c Candidate) []Candidate {
	for _, existing := range list {
		if existing.Path == c.Path {
			return list
		}
	}
	return append(list, c)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
