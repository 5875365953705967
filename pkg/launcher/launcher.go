// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package launcher executes a launch descriptor against the external trainer.
package launcher

import (
	"fmt"

	"launch-toolkit/pkg/descriptor"
)

// Launcher starts the target program described by a LaunchDescriptor and
// blocks until it finishes. The returned int is the target program's exit
// status, propagated unchanged.
type Launcher interface {
	Launch(desc *descriptor.LaunchDescriptor) (int, error)
}

// LaunchFailureError reports a target program that could not be started at
// all (missing or non-executable).
type LaunchFailureError struct {
	TargetProgram string
	Reason        error
}

func (e *LaunchFailureError) Error() string {
	return fmt.Sprintf("failed to launch target program %q: %v", e.TargetProgram, e.Reason)
}

func (e *LaunchFailureError) Unwrap() error {
	return e.Reason
}

// TargetProgramError reports a target program that started but exited with a
// non-zero status. The status is surfaced unchanged; any retry policy belongs
// to the external scheduler.
type TargetProgramError struct {
	TargetProgram string
	ExitCode      int
}

func (e *TargetProgramError) Error() string {
	return fmt.Sprintf("target program %q exited with status %d", e.TargetProgram, e.ExitCode)
}
