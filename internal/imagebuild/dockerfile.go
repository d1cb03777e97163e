// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

const (
	// stagedEnvironmentFile and stagedSourceDir are the build context entries.
	stagedEnvironmentFile = "environment.yml"
	stagedSourceDir       = "app"
	// imageEnvironmentFile is where the manifest is copied inside the image.
	imageEnvironmentFile = "/tmp/environment.yml"
)

// DefaultCommandArgs returns the exec-form command that starts the server in
// the named environment.
func DefaultCommandArgs(m BuildManifest, envName string) []string {
	args := []string{"conda", "run", "--no-capture-output", "-n", envName, m.DefaultCommand.Executable}
	return append(args, m.DefaultCommand.Arguments...)
}

// RenderDockerfile generates the Dockerfile for m. The steps are emitted in
// build order: base image, OS libraries, environment, source, port, working
// directory, default command.
func RenderDockerfile(m BuildManifest, env *EnvironmentManifest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FROM %s\n\n", m.BaseImage)

	if pkgs := m.Packages(); len(pkgs) > 0 {
		sb.WriteString("# OS shared libraries\n")
		sb.WriteString("RUN apt-get update \\\n")
		sb.WriteString("    && apt-get install -y --no-install-recommends \\\n")
		for _, pkg := range pkgs {
			fmt.Fprintf(&sb, "       %s \\\n", pkg)
		}
		sb.WriteString("    && rm -rf /var/lib/apt/lists/*\n\n")
	}

	sb.WriteString("# Conda environment\n")
	fmt.Fprintf(&sb, "COPY %s %s\n", stagedEnvironmentFile, imageEnvironmentFile)
	fmt.Fprintf(&sb, "RUN conda env create -f %s \\\n", imageEnvironmentFile)
	sb.WriteString("    && conda clean -afy\n\n")

	sb.WriteString("# Application source\n")
	fmt.Fprintf(&sb, "COPY %s/ %s/\n\n", stagedSourceDir, path.Clean(m.AppDir))

	fmt.Fprintf(&sb, "EXPOSE %s\n", m.ExposedPort)
	workdir := m.DefaultCommand.WorkingDirectory
	if workdir == "" {
		workdir = m.AppDir
	}
	fmt.Fprintf(&sb, "WORKDIR %s\n", workdir)

	cmd, _ := json.Marshal(DefaultCommandArgs(m, env.Name)) //nolint:errchkjson // []string always marshals
	fmt.Fprintf(&sb, "CMD %s\n", cmd)

	return sb.String()
}
