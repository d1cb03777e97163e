// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cadstart/cadstart/internal/container"
)

const (
	StepValidate         = "validate manifest"
	StepParseEnvironment = "parse environment manifest"
	StepStage            = "stage build context"
	StepRender           = "render Dockerfile"
	StepEngineBuild      = "build image"
	StepVerify           = "verify image"
)

// ErrBuild is the sentinel matched by StepError.
var ErrBuild = errors.New("image build failed")

type (
	// Step is one entry of a build plan.
	Step struct {
		Name   string
		Detail string
	}

	// StepError reports the step that aborted a build. The engine's own
	// error is kept unchanged as the cause.
	StepError struct {
		Step string
		Err  error
	}

	// Result describes a successful build.
	Result struct {
		Tag        string
		Engine     string
		Dockerfile string
	}

	// Builder builds images with a container engine.
	Builder struct {
		engine      container.Engine
		stagingRoot string
		noCache     bool
		pull        bool
		stdout      io.Writer
		stderr      io.Writer
	}

	// BuilderOption configures a Builder.
	BuilderOption func(*Builder)
)

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error { return e.Err }

// Is reports ErrBuild as a match.
func (e *StepError) Is(target error) bool { return target == ErrBuild }

// WithStagingRoot sets the parent directory of temporary build contexts.
// Snap-packaged Docker cannot read the system temp directory; point this at a
// visible directory under $HOME in that case.
func WithStagingRoot(dir string) BuilderOption {
	return func(b *Builder) { b.stagingRoot = dir }
}

// WithNoCache disables the engine build cache.
func WithNoCache(noCache bool) BuilderOption {
	return func(b *Builder) { b.noCache = noCache }
}

// WithPull always pulls a newer base image.
func WithPull(pull bool) BuilderOption {
	return func(b *Builder) { b.pull = pull }
}

// WithOutput sets where the engine's build output goes. Defaults to stderr
// for both streams.
func WithOutput(stdout, stderr io.Writer) BuilderOption {
	return func(b *Builder) { b.stdout, b.stderr = stdout, stderr }
}

// NewBuilder creates a Builder using engine.
func NewBuilder(engine container.Engine, opts ...BuilderOption) *Builder {
	b := &Builder{
		engine: engine,
		stdout: os.Stderr,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Plan lists the steps Build would run for m, without running them.
func (b *Builder) Plan(m BuildManifest) []Step {
	engine := "<none>"
	if b.engine != nil {
		engine = b.engine.Name()
	}
	return []Step{
		{Name: StepValidate, Detail: fmt.Sprintf("port %s, base %s", m.ExposedPort, m.BaseImage)},
		{Name: StepParseEnvironment, Detail: m.EnvironmentManifestFile},
		{Name: StepStage, Detail: fmt.Sprintf("copy %s and the environment manifest", m.SourceDir)},
		{Name: StepRender, Detail: fmt.Sprintf("%d system packages", len(m.Packages()))},
		{Name: StepEngineBuild, Detail: fmt.Sprintf("%s build -t %s", engine, m.Tag)},
		{Name: StepVerify, Detail: m.Tag},
	}
}

// Render validates m, loads its environment manifest and returns the
// Dockerfile.
func Render(m BuildManifest) (string, *EnvironmentManifest, error) {
	if err := m.Validate(); err != nil {
		return "", nil, &StepError{Step: StepValidate, Err: err}
	}
	env, err := LoadEnvironmentManifest(m.EnvironmentManifestFile)
	if err != nil {
		return "", nil, &StepError{Step: StepParseEnvironment, Err: err}
	}
	return RenderDockerfile(m, env), env, nil
}

// Build runs the build steps in order. Any failure aborts the build; no step
// runs after a failed one, and the staging directory is removed on every
// path.
func (b *Builder) Build(ctx context.Context, m BuildManifest) (*Result, error) {
	if b.engine == nil {
		return nil, &StepError{Step: StepEngineBuild, Err: container.ErrEngineNotAvailable}
	}

	dockerfile, env, err := Render(m)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "rendered Dockerfile", "env", env.Name, "packages", len(m.Packages()))
	if !env.HasPackage(m.DefaultCommand.Executable) && !hasPipPackage(env, m.DefaultCommand.Executable) {
		slog.WarnContext(ctx, "default command executable is not a listed dependency",
			"executable", m.DefaultCommand.Executable, "manifest", m.EnvironmentManifestFile)
	}

	if err := ctx.Err(); err != nil {
		return nil, &StepError{Step: StepStage, Err: err}
	}
	contextDir, cleanup, err := stageContext(b.stagingRoot, m, dockerfile)
	defer cleanup()
	if err != nil {
		return nil, &StepError{Step: StepStage, Err: err}
	}
	slog.DebugContext(ctx, "staged build context", "dir", contextDir)

	if err := ctx.Err(); err != nil {
		return nil, &StepError{Step: StepEngineBuild, Err: err}
	}
	err = b.engine.Build(ctx, container.BuildOptions{
		ContextDir: contextDir,
		Dockerfile: "Dockerfile",
		Tag:        m.Tag,
		NoCache:    b.noCache,
		Pull:       b.pull,
		Stdout:     b.stdout,
		Stderr:     b.stderr,
	})
	if err != nil {
		return nil, &StepError{Step: StepEngineBuild, Err: err}
	}

	if m.Tag != "" {
		if err := b.verify(ctx, m.Tag); err != nil {
			return nil, &StepError{Step: StepVerify, Err: err}
		}
	}

	slog.InfoContext(ctx, "image built", "tag", m.Tag, "engine", b.engine.Name())
	return &Result{Tag: m.Tag, Engine: b.engine.Name(), Dockerfile: dockerfile}, nil
}

// verify checks that tag exists after a successful engine build. A tag that
// cannot be confirmed is removed so a later run does not pick it up.
func (b *Builder) verify(ctx context.Context, tag string) error {
	ok, err := b.engine.ImageExists(ctx, tag)
	if err == nil && ok {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("engine reported success but image %s does not exist", tag)
	}
	if rmErr := b.engine.RemoveImage(ctx, tag, true); rmErr != nil {
		slog.DebugContext(ctx, "could not remove unverified image", "tag", tag, "error", rmErr)
	}
	return err
}

func hasPipPackage(env *EnvironmentManifest, pkg string) bool {
	for _, d := range env.Dependencies {
		for _, p := range d.Pip {
			one := EnvironmentManifest{Dependencies: []Dependency{{Spec: p}}}
			if one.HasPackage(pkg) {
				return true
			}
		}
	}
	return false
}
