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

package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"launch-toolkit/pkg/descriptor"
	"launch-toolkit/pkg/logging"
	"launch-toolkit/pkg/sbatch"
)

const (
	renderFormatScript = "script"
	renderFormatYAML   = "yaml"
)

var (
	renderOutput string
	renderFormat string
)

func init() {
	rootCmd.AddCommand(renderCmd)
	addDescriptorFlags(renderCmd)
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Path to write the rendered output to instead of stdout.")
	renderCmd.Flags().StringVar(&renderFormat, "format", renderFormatScript, "Output format: 'script' for the SLURM batch script, 'yaml' for the descriptor file.")
}

var renderCmd = &cobra.Command{
	Use:          "render [./path/to/job.yaml]",
	Short:        "Render a SLURM batch script or a descriptor file without submitting it.",
	Args:         cobra.MaximumNArgs(1),
	Run:          runRenderCmd,
	SilenceUsage: true,
}

func runRenderCmd(cmd *cobra.Command, args []string) {
	opts, err := resolveBuildOptions(cmd, args)
	if err != nil {
		logging.Fatal("Failed to load descriptor file: %v", err)
	}

	content, err := renderContent(opts, renderFormat)
	if err != nil {
		logging.Fatal("Failed to render: %v", err)
	}

	if renderOutput != "" {
		if err := os.WriteFile(renderOutput, []byte(content), 0644); err != nil {
			logging.Fatal("Failed to write output to %s: %v", renderOutput, err)
		}
		logging.Info("Output saved to %s", renderOutput)
		return
	}
	fmt.Print(content)
}

// renderContent validates the builder inputs and renders them in the
// requested format. The yaml format reproduces a descriptor file suitable
// for a later 'submit' invocation.
func renderContent(opts descriptor.BuildOptions, format string) (string, error) {
	desc, err := descriptor.Build(opts)
	if err != nil {
		return "", err
	}

	switch format {
	case renderFormatScript:
		return sbatch.Render(desc)
	case renderFormatYAML:
		content, err := descriptor.Marshal(opts)
		if err != nil {
			return "", err
		}
		return string(content), nil
	default:
		return "", errors.Errorf("unknown render format %q, expected %q or %q", format, renderFormatScript, renderFormatYAML)
	}
}
