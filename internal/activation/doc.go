// SPDX-License-Identifier: MPL-2.0

// Package activation turns a resolved conda location into the environment a
// child process runs with.
//
// Activation never mutates host state or the launcher's own environment: the
// result is an Environment value whose variable list is handed to the child.
// Three activators cover the candidate kinds produced by envresolve:
//
//   - PrefixActivator computes the variables directly from a conda root.
//   - ShellActivator sources a POSIX conda hook and runs "conda activate" in an
//     embedded shell interpreter (mvdan.cc/sh), capturing the exported result.
//   - BatchActivator calls a Windows activate.bat through cmd.exe and parses
//     the environment it prints.
package activation
