// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError sets a non-zero exit status for a command that has already
// written its own report, such as a verify that found the repository
// untrusted. main exits with Code and prints nothing more.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit status.
func (e *ExitError) ExitCode() int {
	return e.Code
}
