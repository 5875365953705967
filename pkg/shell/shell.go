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

// Package shell runs external commands and captures their output and exit code.
package shell

import (
	"bytes"
	"math/rand"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Command is an external command with optional stdin input.
type Command struct {
	name  string
	args  []string
	input string
}

// NewCommand creates a Command for the given program and arguments.
func NewCommand(name string, args ...string) *Command {
	return &Command{name: name, args: args}
}

// SetInput sets the content fed to the command's stdin.
func (c *Command) SetInput(input string) {
	c.input = input
}

// Execute runs the command and waits for it to finish. A command that could
// not be started at all is reported with exit code -1 and the error text in
// Stderr.
func (c *Command) Execute() Result {
	cmd := exec.Command(c.name, c.args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.input != "" {
		cmd.Stdin = strings.NewReader(c.input)
	}

	err := cmd.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			if result.Stderr == "" {
				result.Stderr = err.Error()
			}
		}
	}
	return result
}

// ExecuteCommand runs a program with arguments and returns the captured result.
func ExecuteCommand(name string, args ...string) Result {
	return NewCommand(name, args...).Execute()
}

// RandomString generates a random lowercase string of the specified length.
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz"
	var seededRand *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}
