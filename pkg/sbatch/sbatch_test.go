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

package sbatch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"launch-toolkit/pkg/descriptor"
)

func buildDescriptor(t *testing.T) *descriptor.LaunchDescriptor {
	t.Helper()
	desc, err := descriptor.Build(descriptor.BuildOptions{
		Model:          "roberta-large",
		TaskName:       "glue",
		DatasetName:    "sst2",
		VisibleDevices: "0",
		TargetProgram:  "./run.py",
		Resources: descriptor.Resources{
			Account:        "def-sponsor",
			WallClockLimit: 12 * time.Hour,
			NodeCount:      2,
			TaskCount:      4,
			GPUsPerNode:    1,
		},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return desc
}

// countLines counts script lines equal to want.
func countLines(script, want string) int {
	count := 0
	for _, line := range strings.Split(script, "\n") {
		if line == want {
			count++
		}
	}
	return count
}

// assertDirective checks that the script holds exactly one occurrence of the
// given #SBATCH directive line.
func assertDirective(t *testing.T, script, directive string) {
	t.Helper()
	if got := countLines(script, directive); got != 1 {
		t.Errorf("Expected exactly one %q line, got %d\nscript:\n%s", directive, got, script)
	}
}

func TestRenderDirectives(t *testing.T) {
	script, err := Render(buildDescriptor(t))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if !strings.HasPrefix(script, "#!/bin/bash\n") {
		t.Errorf("Expected script to start with a bash shebang, got:\n%s", script)
	}

	assertDirective(t, script, "#SBATCH --job-name=sst2-roberta")
	assertDirective(t, script, "#SBATCH --account=def-sponsor")
	assertDirective(t, script, "#SBATCH --time=12:00:00")
	assertDirective(t, script, "#SBATCH --nodes=2")
	assertDirective(t, script, "#SBATCH --ntasks=4")
	assertDirective(t, script, "#SBATCH --gres=gpu:1")
}

func TestRenderExportsAndCommand(t *testing.T) {
	script, err := Render(buildDescriptor(t))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	assertDirective(t, script, "export TASK_NAME=glue")
	assertDirective(t, script, "export DATASET_NAME=sst2")
	assertDirective(t, script, "export CUDA_VISIBLE_DEVICES=0")

	lines := strings.Split(strings.TrimRight(script, "\n"), "\n")
	command := lines[len(lines)-1]
	if !strings.HasPrefix(command, "./run.py ") {
		t.Errorf("Expected final line to invoke the target program, got %q", command)
	}
	for _, fragment := range []string{
		"--per_device_train_batch_size 32",
		"--learning_rate 0.005",
		"--output_dir checkpoints/sst2-roberta/",
		"--do_train",
		"--overwrite_output_dir",
		"--prefix",
	} {
		if !strings.Contains(command, fragment) {
			t.Errorf("Expected command to contain %q, got %q", fragment, command)
		}
	}
}

func TestRenderOmitsEmptyDirectives(t *testing.T) {
	desc := buildDescriptor(t)
	desc.Resources.Account = ""
	desc.Resources.WallClockLimit = 0
	desc.Resources.GPUsPerNode = 0

	script, err := Render(desc)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, fragment := range []string{"--account", "--time", "--gres"} {
		if strings.Contains(script, fragment) {
			t.Errorf("Expected no %s directive, got:\n%s", fragment, script)
		}
	}
}

func TestRenderInvalidDescriptor(t *testing.T) {
	desc := buildDescriptor(t)
	desc.Resources.NodeCount = 0

	if _, err := Render(desc); err == nil {
		t.Fatal("Expected Render to fail on an invalid descriptor, got nil error")
	}
}

// installFakeSbatch puts a stand-in sbatch on PATH that copies its stdin to
// a capture file and prints the given output.
func installFakeSbatch(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(filepath.Join(dir, "sbatch"), []byte(script), 0755); err != nil {
		t.Fatalf("Failed to install fake sbatch: %v", err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

func TestSubmitFeedsScriptOnStdin(t *testing.T) {
	dir := installFakeSbatch(t, `cat > "$(dirname "$0")/script.txt"
echo "Submitted batch job 4242"`)

	jobID, err := Submit(buildDescriptor(t))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if jobID != "4242" {
		t.Errorf("Expected job id 4242, got %q", jobID)
	}

	captured, err := os.ReadFile(filepath.Join(dir, "script.txt"))
	if err != nil {
		t.Fatalf("Fake sbatch did not receive a script on stdin: %v", err)
	}
	script := string(captured)
	assertDirective(t, script, "#SBATCH --job-name=sst2-roberta")
	if !strings.Contains(script, "./run.py") {
		t.Errorf("Expected the trainer command in the submitted script, got:\n%s", script)
	}
}

func TestSubmitCommandFailure(t *testing.T) {
	installFakeSbatch(t, `exit 1`)

	if _, err := Submit(buildDescriptor(t)); err == nil {
		t.Fatal("Expected Submit to fail when sbatch exits non-zero, got nil error")
	}
}

func TestFormatWallClock(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"zero", 0, ""},
		{"seconds", 45 * time.Second, "00:00:45"},
		{"minutes", 90 * time.Minute, "01:30:00"},
		{"hours", 12 * time.Hour, "12:00:00"},
		{"days", 26 * time.Hour, "1-02:00:00"},
		{"days and remainder", 49*time.Hour + 30*time.Minute, "2-01:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatWallClock(tt.in); got != tt.want {
				t.Errorf("FormatWallClock(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractJobID(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   string
	}{
		{"normal output", "Submitted batch job 12345\n", "12345"},
		{"with noise", "sbatch: some warning\nSubmitted batch job 7\n", "7"},
		{"no job line", "something else entirely\n", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJobID(tt.stdout); got != tt.want {
				t.Errorf("extractJobID(%q) = %q, want %q", tt.stdout, got, tt.want)
			}
		})
	}
}

func TestQuoteArg(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "roberta-large", "roberta-large"},
		{"empty", "", "''"},
		{"spaces", "a b", "'a b'"},
		{"dollar", "$HOME", "'$HOME'"},
		{"single quote", "it's", `'it'\''s'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quoteArg(tt.in); got != tt.want {
				t.Errorf("quoteArg(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
