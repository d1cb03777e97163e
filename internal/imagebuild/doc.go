// SPDX-License-Identifier: MPL-2.0

// Package imagebuild produces the container image for the application: OS
// shared libraries, the conda environment materialized from its manifest,
// the application source, and the default launch command.
//
// A BuildManifest is validated once and then treated as immutable. Builder
// applies the build steps in strict order and aborts on the first failure;
// the temporary build context is always removed, and the image tag only
// exists if the container engine build succeeded.
package imagebuild
