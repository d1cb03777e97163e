// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
)

// maxConfigFileSize bounds the config file read into memory.
const maxConfigFileSize = 1 << 20

// formatCUEError flattens a CUE error into "<file>: <path>: <message>" lines.
//
//	config.cue: container.port: invalid value 70000 (out of bound <=65535)
func formatCUEError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	cueErrors := errors.Errors(err)
	if len(cueErrors) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(cueErrors))
	for _, e := range cueErrors {
		pathStr := formatPath(errors.Path(e))
		msg := e.Error()

		// CUE sometimes repeats the path in the message.
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, pathStr), ":"))
		}

		if pathStr != "" {
			lines = append(lines, pathStr+": "+msg)
		} else {
			lines = append(lines, msg)
		}
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

// formatPath renders ["candidate_paths", "0"] as "candidate_paths[0]".
// The #Config definition prefix is dropped.
func formatPath(path []string) string {
	var result strings.Builder
	for _, part := range path {
		if strings.HasPrefix(part, "#") {
			continue
		}
		if isIndex(part) && result.Len() > 0 {
			result.WriteString("[" + part + "]")
			continue
		}
		if result.Len() > 0 {
			result.WriteString(".")
		}
		result.WriteString(part)
	}
	return result.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// checkFileSize verifies that data does not exceed maxSize.
func checkFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes",
			filename, len(data), maxSize)
	}
	return nil
}
