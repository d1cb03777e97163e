// SPDX-License-Identifier: MPL-2.0

// cadstart launches the CAD generator web application in its conda
// environment and builds its container image.
package main

import cmd "github.com/cadstart/cadstart/cmd/cadstart"

func main() {
	cmd.Execute()
}
