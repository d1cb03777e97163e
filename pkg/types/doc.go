// SPDX-License-Identifier: MPL-2.0

// Package types holds small validated value types shared by the launcher,
// the resolver and the image builder.
package types
