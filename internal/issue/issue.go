// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"sort"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	EnvironmentNotFoundId Id = iota + 1
	ActivationFailedId
	LaunchFailedId
	ConfigLoadFailedId
	ContainerEngineNotFoundId
	ImageBuildFailedId
	EnvironmentManifestInvalidId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the markdown message for the terminal. stylePath is a
// glamour style name ("auto", "dark", "light", "notty") or a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	environmentNotFoundIssue = &Issue{
		id: EnvironmentNotFoundId,
		mdMsg: `
# Conda environment not found!

None of the candidate conda locations exist on this machine, so the
application environment cannot be activated.

## Locations searched (in order of priority)
1. User installs: ~/miniconda3, ~/anaconda3, ~/miniforge3
2. System installs: /opt/conda, C:\ProgramData\miniconda3, ...
3. The install referenced by CONDA_EXE, if set

## Things you can try
- Install Miniconda and create the environment:
~~~
$ conda env create -f environment.yml
~~~
- Point the launcher at your install in config.cue:
~~~cue
candidate_paths: ["/path/to/miniconda3/etc/profile.d/conda.sh"]
~~~
- List what the launcher probes:
~~~
$ cadstart env
~~~`,
		extLinks: []HttpLink{"https://docs.conda.io/projects/miniconda/en/latest/"},
	}

	activationFailedIssue = &Issue{
		id: ActivationFailedId,
		mdMsg: `
# Failed to activate the conda environment!

A conda install was found but the named environment could not be activated.
The environment may be missing, partially installed, or built for another
platform.

## Things you can try
- Check that the environment exists:
~~~
$ conda env list
~~~
- Recreate it from the manifest:
~~~
$ conda env remove -n cadgen
$ conda env create -f environment.yml
~~~`,
	}

	launchFailedIssue = &Issue{
		id: LaunchFailedId,
		mdMsg: `
# Failed to start the application!

The environment was activated but the server executable could not be started.

## Common causes
- streamlit is not installed in the environment
- The working directory does not exist
- The executable is not marked executable

## Things you can try
~~~
$ conda run -n cadgen streamlit version
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Configuration file locations
- Linux: ~/.config/cadstart/config.cue
- macOS: ~/Library/Application Support/cadstart/config.cue
- Windows: %APPDATA%\cadstart\config.cue

## Things you can try
- Write the defaults and edit from there:
~~~
$ cadstart config init
~~~
- Remove the file to fall back to built-in defaults`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

Building the image requires Docker or Podman.

## Things you can try
- Install Podman: https://podman.io
- Install Docker: https://docs.docker.com/get-docker/
- Select the engine explicitly:
~~~
$ cadstart image build --engine docker
~~~`,
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# Image build failed!

The build was aborted and no image was tagged. The container engine output
above shows the failing step.

## Things you can try
- Render the Dockerfile and build it by hand:
~~~
$ cadstart image dockerfile > Dockerfile
$ docker build .
~~~`,
	}

	environmentManifestInvalidIssue = &Issue{
		id: EnvironmentManifestInvalidId,
		mdMsg: `
# Invalid environment manifest!

The environment manifest must be a conda environment file with a name and a
dependency list.

~~~yaml
name: cadgen
channels: [conda-forge]
dependencies:
  - python=3.10
  - pythonocc-core
  - streamlit
~~~`,
	}

	issues = map[Id]*Issue{
		environmentNotFoundIssue.Id():        environmentNotFoundIssue,
		activationFailedIssue.Id():           activationFailedIssue,
		launchFailedIssue.Id():               launchFailedIssue,
		configLoadFailedIssue.Id():           configLoadFailedIssue,
		containerEngineNotFoundIssue.Id():    containerEngineNotFoundIssue,
		imageBuildFailedIssue.Id():           imageBuildFailedIssue,
		environmentManifestInvalidIssue.Id(): environmentManifestInvalidIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	values := make([]*Issue, 0, len(issues))
	for _, is := range issues {
		values = append(values, is)
	}
	sort.Slice(values, func(i, j int) bool { return values[i].id < values[j].id })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
