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
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"launch-toolkit/pkg/descriptor"
	"launch-toolkit/pkg/launcher"
	"launch-toolkit/pkg/logging"
	"launch-toolkit/pkg/stage"
)

var (
	jobName        string
	model          string
	taskName       string
	datasetName    string
	visibleDevices string
	targetProgram  string

	// Hyperparameter flags; defaults mirror the parameter schema.
	batchSize    int
	learningRate float64
	dropout      float64
	prefixLength int
	epochs       int
	seed         int
	maxSeqLength int
	saveStrategy string
	evalStrategy string

	// Resource request flags.
	account     string
	wallClock   time.Duration
	nodeCount   int
	taskCount   int
	gpusPerNode int

	stageCode bool
)

func init() {
	rootCmd.AddCommand(launchCmd)
	addDescriptorFlags(launchCmd)
	launchCmd.Flags().BoolVar(&stageCode, "stage", false, "Archive a snapshot of the working directory into the output directory before launching.")
	_ = launchCmd.MarkFlagRequired("model")
	_ = launchCmd.MarkFlagRequired("dataset")
}

func addDescriptorFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&jobName, "job-name", "", "Name of the job. Defaults to <dataset>-<model family>.")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model identity passed as --model_name_or_path (e.g. 'roberta-large'). Required.")
	cmd.Flags().StringVar(&taskName, "task", "glue", "Task name exported as TASK_NAME and passed as --task_name.")
	cmd.Flags().StringVarP(&datasetName, "dataset", "d", "", "Dataset name exported as DATASET_NAME and passed as --dataset_name. Required.")
	cmd.Flags().StringVar(&visibleDevices, "devices", "", "Visible-device selector exported as CUDA_VISIBLE_DEVICES (e.g. '0,1').")
	cmd.Flags().StringVarP(&targetProgram, "target", "t", "./run.py", "Path to the external trainer executable.")

	cmd.Flags().IntVar(&batchSize, "batch-size", 32, "Per-device training batch size.")
	cmd.Flags().Float64Var(&learningRate, "learning-rate", 5e-3, "Learning rate.")
	cmd.Flags().Float64Var(&dropout, "dropout", 0.1, "Hidden dropout probability.")
	cmd.Flags().IntVar(&prefixLength, "prefix-length", 64, "Prefix sequence length.")
	cmd.Flags().IntVar(&epochs, "epochs", 50, "Number of training epochs.")
	cmd.Flags().IntVar(&seed, "seed", 11, "Random seed.")
	cmd.Flags().IntVar(&maxSeqLength, "max-seq-length", 128, "Maximum input sequence length.")
	cmd.Flags().StringVar(&saveStrategy, "save-strategy", "no", "Checkpoint save strategy ('no', 'steps' or 'epoch').")
	cmd.Flags().StringVar(&evalStrategy, "eval-strategy", "epoch", "Evaluation strategy ('no', 'steps' or 'epoch').")

	cmd.Flags().StringVar(&account, "account", "", "Scheduler account to charge. Falls back to the site config.")
	cmd.Flags().DurationVar(&wallClock, "time", 0, "Wall-clock limit passed through to the scheduler (e.g. 12h).")
	cmd.Flags().IntVar(&nodeCount, "nodes", 1, "Number of nodes to request.")
	cmd.Flags().IntVar(&taskCount, "ntasks", 1, "Number of tasks to request.")
	cmd.Flags().IntVar(&gpusPerNode, "gpus-per-node", 0, "Number of GPUs to request per node.")
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Build a launch descriptor and run the trainer locally.",
	Long: `The 'launch' command assembles a launch descriptor from flags (every
hyperparameter has a documented default), validates it and invokes the target
program synchronously. The trainer's exit status is propagated unchanged.`,
	Run:          runLaunchCmd,
	SilenceUsage: true,
}

func runLaunchCmd(cmd *cobra.Command, args []string) {
	desc, err := descriptor.Build(buildOptionsFromFlags(cmd))
	if err != nil {
		logging.Fatal("Invalid launch configuration: %v", err)
	}

	if stageCode {
		if _, err := stage.Snapshot(".", desc.OutputDir, desc.JobName); err != nil {
			logging.Fatal("Failed to stage code snapshot: %v", err)
		}
	}

	code, err := launcher.NewLocal().Launch(desc)
	if err != nil {
		logging.Error("Launch failed: %v", err)
		if code == 0 {
			code = 1
		}
	}
	if code != 0 {
		os.Exit(code)
	}
}

// buildOptionsFromFlags converts the flag set into builder inputs. Only flags
// the user actually supplied become overrides; the parameter schema remains
// the single authority for defaults. Site config fills gaps left by flags.
func buildOptionsFromFlags(cmd *cobra.Command) descriptor.BuildOptions {
	hyperparameters := map[string]interface{}{
		"batch-size":     batchSize,
		"learning-rate":  learningRate,
		"dropout":        dropout,
		"prefix-length":  prefixLength,
		"epochs":         epochs,
		"seed":           seed,
		"max-seq-length": maxSeqLength,
		"save-strategy":  saveStrategy,
		"eval-strategy":  evalStrategy,
	}
	overrides := map[string]interface{}{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if value, ok := hyperparameters[f.Name]; ok {
			overrides[f.Name] = value
		}
	})

	if account == "" {
		account = siteConfig.Account
	}
	if visibleDevices == "" {
		visibleDevices = siteConfig.VisibleDevices
	}
	if wallClock == 0 {
		wallClock = siteConfig.WallClockLimit
	}
	if !cmd.Flags().Changed("target") && siteConfig.TargetProgram != "" {
		targetProgram = siteConfig.TargetProgram
	}

	return descriptor.BuildOptions{
		JobName:        jobName,
		Model:          model,
		TaskName:       taskName,
		DatasetName:    datasetName,
		VisibleDevices: visibleDevices,
		TargetProgram:  targetProgram,
		Resources: descriptor.Resources{
			Account:        account,
			WallClockLimit: wallClock,
			NodeCount:      nodeCount,
			TaskCount:      taskCount,
			GPUsPerNode:    gpusPerNode,
		},
		Overrides: overrides,
	}
}

// resolveBuildOptions reads builder inputs from a descriptor file when one is
// given on the command line, and from the command's flags otherwise.
func resolveBuildOptions(cmd *cobra.Command, args []string) (descriptor.BuildOptions, error) {
	if len(args) == 1 {
		opts, err := descriptor.Load(args[0])
		if err != nil {
			return descriptor.BuildOptions{}, err
		}
		applySiteDefaults(&opts)
		return opts, nil
	}
	return buildOptionsFromFlags(cmd), nil
}
