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

package descriptor

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func minimalOptions() BuildOptions {
	return BuildOptions{
		Model:         "roberta-large",
		TaskName:      "glue",
		DatasetName:   "sst2",
		TargetProgram: "./run.py",
		Resources:     Resources{NodeCount: 1, TaskCount: 1},
	}
}

// flagValues collects every value following an occurrence of --flag in args.
func flagValues(args []string, flag string) []string {
	var values []string
	for i, a := range args {
		if a == "--"+flag && i+1 < len(args) {
			values = append(values, args[i+1])
		}
	}
	return values
}

// countSwitch counts bare occurrences of --flag in args.
func countSwitch(args []string, flag string) int {
	count := 0
	for _, a := range args {
		if a == "--"+flag {
			count++
		}
	}
	return count
}

// assertSingleFlag checks that args holds exactly one occurrence of --flag
// with the expected value.
func assertSingleFlag(t *testing.T, args []string, flag, want string) {
	t.Helper()
	values := flagValues(args, flag)
	if len(values) != 1 {
		t.Fatalf("Expected exactly one occurrence of --%s, got %d", flag, len(values))
	}
	if values[0] != want {
		t.Errorf("Expected --%s %q, got %q", flag, want, values[0])
	}
}

func TestBuildDefaults(t *testing.T) {
	desc, err := Build(minimalOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	args := desc.Args()

	defaults := map[string]string{
		"model_name_or_path":          "roberta-large",
		"task_name":                   "glue",
		"dataset_name":                "sst2",
		"max_seq_length":              "128",
		"per_device_train_batch_size": "32",
		"learning_rate":               "0.005",
		"num_train_epochs":            "50",
		"pre_seq_len":                 "64",
		"hidden_dropout_prob":         "0.1",
		"seed":                        "11",
		"save_strategy":               "no",
		"evaluation_strategy":         "epoch",
		"output_dir":                  "checkpoints/sst2-roberta/",
	}
	for flag, want := range defaults {
		assertSingleFlag(t, args, flag, want)
	}

	for _, sw := range []string{"do_train", "overwrite_output_dir", "prefix"} {
		if got := countSwitch(args, sw); got != 1 {
			t.Errorf("Expected exactly one --%s switch, got %d", sw, got)
		}
	}
}

func TestBuildOverrides(t *testing.T) {
	tests := []struct {
		name     string
		override string
		value    interface{}
		flag     string
		want     string
	}{
		{"batch size", "batch-size", 16, "per_device_train_batch_size", "16"},
		{"learning rate", "learning-rate", 1e-2, "learning_rate", "0.01"},
		{"dropout", "dropout", 0.2, "hidden_dropout_prob", "0.2"},
		{"prefix length", "prefix-length", 8, "pre_seq_len", "8"},
		{"epochs", "epochs", 100, "num_train_epochs", "100"},
		{"seed", "seed", 42, "seed", "42"},
		{"max seq length", "max-seq-length", 256, "max_seq_length", "256"},
		{"save strategy", "save-strategy", "epoch", "save_strategy", "epoch"},
		{"string-typed numeric", "batch-size", "64", "per_device_train_batch_size", "64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := minimalOptions()
			opts.Overrides = map[string]interface{}{tt.override: tt.value}
			desc, err := Build(opts)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			assertSingleFlag(t, desc.Args(), tt.flag, tt.want)
		})
	}
}

func TestBuildInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BuildOptions)
	}{
		{"zero batch size", func(o *BuildOptions) { o.Overrides = map[string]interface{}{"batch-size": 0} }},
		{"negative epoch count", func(o *BuildOptions) { o.Overrides = map[string]interface{}{"epochs": -1} }},
		{"zero node count", func(o *BuildOptions) { o.Resources.NodeCount = 0 }},
		{"zero task count", func(o *BuildOptions) { o.Resources.TaskCount = 0 }},
		{"negative gpu count", func(o *BuildOptions) { o.Resources.GPUsPerNode = -1 }},
		{"dropout out of range", func(o *BuildOptions) { o.Overrides = map[string]interface{}{"dropout": 1.5} }},
		{"unknown hyperparameter", func(o *BuildOptions) { o.Overrides = map[string]interface{}{"momentum": 0.9} }},
		{"non-numeric batch size", func(o *BuildOptions) { o.Overrides = map[string]interface{}{"batch-size": "many"} }},
		{"bad save strategy", func(o *BuildOptions) { o.Overrides = map[string]interface{}{"save-strategy": "sometimes"} }},
		{"missing model", func(o *BuildOptions) { o.Model = "" }},
		{"missing dataset", func(o *BuildOptions) { o.DatasetName = "" }},
		{"missing target program", func(o *BuildOptions) { o.TargetProgram = "" }},
		{"extra argument shadows schema flag", func(o *BuildOptions) { o.ExtraArgs = []ArgPair{{Flag: "seed", Value: "7"}} }},
		{"extra argument shadows output dir", func(o *BuildOptions) { o.ExtraArgs = []ArgPair{{Flag: "output_dir", Value: "elsewhere/"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := minimalOptions()
			tt.mutate(&opts)
			_, err := Build(opts)
			if err == nil {
				t.Fatal("Expected Build to fail, got nil error")
			}
			var invalid *InvalidConfigurationError
			if !errors.As(err, &invalid) {
				t.Errorf("Expected InvalidConfigurationError, got %T: %v", err, err)
			}
		})
	}
}

func TestDeriveOutputDir(t *testing.T) {
	tests := []struct {
		name    string
		dataset string
		model   string
		want    string
		wantErr bool
	}{
		{"roberta large", "sst2", "roberta-large", "checkpoints/sst2-roberta/", false},
		{"single word model", "rte", "roberta", "checkpoints/rte-roberta/", false},
		{"multi dash model", "boolq", "bert-base-cased", "checkpoints/boolq-bert/", false},
		{"missing dataset", "", "roberta-large", "", true},
		{"missing model", "sst2", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveOutputDir(tt.dataset, tt.model)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("DeriveOutputDir failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestEnvironList(t *testing.T) {
	opts := minimalOptions()
	opts.VisibleDevices = "0,1"
	opts.Environment = map[string]string{"WANDB_DISABLED": "true"}
	desc, err := Build(opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []string{
		"CUDA_VISIBLE_DEVICES=0,1",
		"DATASET_NAME=sst2",
		"TASK_NAME=glue",
		"WANDB_DISABLED=true",
	}
	if diff := cmp.Diff(want, desc.EnvironList()); diff != "" {
		t.Errorf("EnvironList mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildJobName(t *testing.T) {
	desc, err := Build(minimalOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if desc.JobName != "sst2-roberta" {
		t.Errorf("Expected derived job name %q, got %q", "sst2-roberta", desc.JobName)
	}

	opts := minimalOptions()
	opts.JobName = "my-job"
	desc, err = Build(opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if desc.JobName != "my-job" {
		t.Errorf("Expected explicit job name %q, got %q", "my-job", desc.JobName)
	}
}

func TestBuildExtraArgs(t *testing.T) {
	opts := minimalOptions()
	opts.ExtraArgs = []ArgPair{{Flag: "warmup_ratio", Value: "0.06"}}
	desc, err := Build(opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	assertSingleFlag(t, desc.Args(), "warmup_ratio", "0.06")
}
