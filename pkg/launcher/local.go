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

package launcher

import (
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"launch-toolkit/pkg/descriptor"
	"launch-toolkit/pkg/logging"
)

// Local launches the target program as a child process of the current one
// and waits for it to finish. The descriptor's environment variables are set
// on the child only; the parent's environment is never mutated. Output
// streams pass through unmodified.
type Local struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewLocal creates a Local launcher wired to the current process's output
// streams.
func NewLocal() *Local {
	return &Local{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Launch validates the descriptor, resolves the target program and runs it
// once. No retry is attempted and no cancellation is implemented here;
// terminating a run early is the outer scheduler's responsibility.
func (l *Local) Launch(desc *descriptor.LaunchDescriptor) (int, error) {
	if err := desc.Validate(); err != nil {
		return 0, err
	}

	path, err := resolveTarget(desc.TargetProgram)
	if err != nil {
		return 0, &LaunchFailureError{TargetProgram: desc.TargetProgram, Reason: err}
	}

	args := desc.Args()
	logging.Info("Launching %s %s", path, strings.Join(args, " "))

	cmd := exec.Command(path, args...)
	cmd.Env = append(os.Environ(), desc.EnvironList()...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		return 0, &LaunchFailureError{TargetProgram: desc.TargetProgram, Reason: err}
	}

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return 0, &LaunchFailureError{TargetProgram: desc.TargetProgram, Reason: err}
	}

	code := exitErr.ExitCode()
	if code < 0 {
		// Killed by a signal; report what the surrounding shell would see.
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			code = 128 + int(status.Signal())
		}
	}
	return code, &TargetProgramError{TargetProgram: desc.TargetProgram, ExitCode: code}
}

// resolveTarget locates the target program, accepting both path-qualified
// programs and bare names found via PATH.
func resolveTarget(target string) (string, error) {
	if strings.ContainsRune(target, os.PathSeparator) {
		info, err := os.Stat(target)
		if err != nil {
			return "", err
		}
		if info.IsDir() || info.Mode()&0111 == 0 {
			return "", &os.PathError{Op: "exec", Path: target, Err: syscall.EACCES}
		}
		return target, nil
	}
	return exec.LookPath(target)
}
