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

// Package sbatch renders a launch descriptor into a SLURM batch script and
// submits it through the sbatch command. Resource limits in the script are
// directives for the external scheduler; nothing here enforces them.
package sbatch

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"

	"launch-toolkit/pkg/descriptor"
	"launch-toolkit/pkg/logging"
	"launch-toolkit/pkg/shell"
)

// BatchScriptTemplate is the Go template for the generated SLURM batch script.
const BatchScriptTemplate = `#!/bin/bash
#SBATCH --job-name={{.JobName}}
{{- if .Account}}
#SBATCH --account={{.Account}}
{{- end}}
{{- if .Time}}
#SBATCH --time={{.Time}}
{{- end}}
#SBATCH --nodes={{.Nodes}}
#SBATCH --ntasks={{.Tasks}}
{{- if gt .GPUsPerNode 0}}
#SBATCH --gres=gpu:{{.GPUsPerNode}}
{{- end}}

{{range .Exports -}}
export {{.Name}}={{.Value}}
{{end}}
{{- .Command}}
`

type exportLine struct {
	Name  string
	Value string
}

type scriptData struct {
	JobName     string
	Account     string
	Time        string
	Nodes       int
	Tasks       int
	GPUsPerNode int
	Exports     []exportLine
	Command     string
}

// Render generates the batch script text for a descriptor.
func Render(desc *descriptor.LaunchDescriptor) (string, error) {
	if err := desc.Validate(); err != nil {
		return "", err
	}

	exports := make([]exportLine, 0, len(desc.Environment))
	for _, entry := range desc.EnvironList() {
		parts := strings.SplitN(entry, "=", 2)
		exports = append(exports, exportLine{Name: parts[0], Value: quoteArg(parts[1])})
	}

	command := desc.TargetProgram
	for _, arg := range desc.Args() {
		command += " " + quoteArg(arg)
	}

	data := scriptData{
		JobName:     desc.JobName,
		Account:     desc.Resources.Account,
		Time:        FormatWallClock(desc.Resources.WallClockLimit),
		Nodes:       desc.Resources.NodeCount,
		Tasks:       desc.Resources.TaskCount,
		GPUsPerNode: desc.Resources.GPUsPerNode,
		Exports:     exports,
		Command:     command,
	}

	tmpl, err := template.New("sbatch").Parse(BatchScriptTemplate)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse batch script template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to execute batch script template")
	}
	return buf.String(), nil
}

// Submit renders the batch script and feeds it to sbatch on stdin, so no
// script file is left behind. It returns the scheduler's job id on success.
func Submit(desc *descriptor.LaunchDescriptor) (string, error) {
	script, err := Render(desc)
	if err != nil {
		return "", err
	}

	logging.Info("Submitting batch script for job '%s'...", desc.JobName)
	logging.Debug("Batch script content:\n%s", script)

	cmd := shell.NewCommand("sbatch")
	cmd.SetInput(script)
	res := cmd.Execute()
	if res.ExitCode != 0 {
		return "", errors.Errorf("sbatch failed with exit code %d: %s\n%s", res.ExitCode, res.Stderr, res.Stdout)
	}

	jobID := extractJobID(res.Stdout)
	if jobID == "" {
		logging.Warn("Could not parse job id from sbatch output: %s", res.Stdout)
	} else {
		logging.Info("Submitted batch job %s", jobID)
	}
	return jobID, nil
}

// FormatWallClock renders a duration in SLURM's D-HH:MM:SS time format. A
// zero duration renders empty, leaving the partition default in effect.
func FormatWallClock(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	total := int(d.Seconds())
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

var jobIDPattern = regexp.MustCompile(`Submitted batch job (\d+)`)

// extractJobID parses the job id from sbatch's stdout.
func extractJobID(stdout string) string {
	if m := jobIDPattern.FindStringSubmatch(stdout); m != nil {
		return m[1]
	}
	return ""
}

// quoteArg single-quotes an argument when it contains characters the shell
// would otherwise interpret.
func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.ContainsAny(arg, " \t\n\"'$&|;<>()*?#~`\\") {
		return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
	}
	return arg
}
