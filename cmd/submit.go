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
	"github.com/spf13/cobra"

	"launch-toolkit/pkg/descriptor"
	"launch-toolkit/pkg/logging"
	"launch-toolkit/pkg/sbatch"
)

func init() {
	rootCmd.AddCommand(submitCmd)
	addDescriptorFlags(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit [./path/to/job.yaml]",
	Short: "Submit a job to the cluster scheduler.",
	Long: `Submit builds a launch descriptor from a YAML file, or from flags when
no file is given, renders it into a SLURM batch script and hands it to
sbatch. Resource limits in the descriptor are directives for the scheduler;
queuing, retries and wall-clock enforcement all stay with it.

Example job.yaml:

  target_program: ./run.py
  model: roberta-large
  task_name: glue
  dataset_name: sst2
  visible_devices: "0"
  resources:
    account: def-sponsor
    wall_clock_limit: 12h
    node_count: 1
    task_count: 1
    gpus_per_node: 1
  hyperparameters:
    batch-size: 16
`,
	Args:         cobra.MaximumNArgs(1),
	Run:          runSubmitCmd,
	SilenceUsage: true,
}

func runSubmitCmd(cmd *cobra.Command, args []string) {
	opts, err := resolveBuildOptions(cmd, args)
	if err != nil {
		logging.Fatal("Failed to load descriptor file: %v", err)
	}

	desc, err := descriptor.Build(opts)
	if err != nil {
		logging.Fatal("Invalid launch configuration: %v", err)
	}

	jobID, err := sbatch.Submit(desc)
	if err != nil {
		logging.Fatal("Submission failed: %v", err)
	}
	if jobID != "" {
		logging.Info("Job '%s' queued as batch job %s", desc.JobName, jobID)
	}
}

func applySiteDefaults(opts *descriptor.BuildOptions) {
	if opts.Resources.Account == "" {
		opts.Resources.Account = siteConfig.Account
	}
	if opts.VisibleDevices == "" {
		opts.VisibleDevices = siteConfig.VisibleDevices
	}
	if opts.Resources.WallClockLimit == 0 {
		opts.Resources.WallClockLimit = siteConfig.WallClockLimit
	}
	if opts.TargetProgram == "" {
		opts.TargetProgram = siteConfig.TargetProgram
	}
}
