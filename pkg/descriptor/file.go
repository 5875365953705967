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
	"os"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// File is the on-disk YAML form of a job submission.
//
// Example:
//
//	job_name: sst2-roberta
//	target_program: ./run.py
//	model: roberta-large
//	task_name: glue
//	dataset_name: sst2
//	visible_devices: "0"
//	resources:
//	  account: def-sponsor
//	  wall_clock_limit: 12h
//	  node_count: 1
//	  task_count: 1
//	  gpus_per_node: 1
//	hyperparameters:
//	  batch-size: 16
//	  learning-rate: 1e-2
type File struct {
	JobName         string                 `yaml:"job_name,omitempty"`
	TargetProgram   string                 `yaml:"target_program"`
	Model           string                 `yaml:"model"`
	TaskName        string                 `yaml:"task_name"`
	DatasetName     string                 `yaml:"dataset_name"`
	VisibleDevices  string                 `yaml:"visible_devices,omitempty"`
	Resources       ResourcesFile          `yaml:"resources"`
	Hyperparameters map[string]interface{} `yaml:"hyperparameters,omitempty"`
	Environment     map[string]string      `yaml:"environment,omitempty"`
	ExtraArgs       []ArgPairFile          `yaml:"extra_args,omitempty"`
}

// ResourcesFile is the YAML form of a resource request. The wall-clock limit
// uses Go duration syntax ("12h", "1h30m"). The counts are pointers so an
// omitted count can default to 1 while an explicit 0 stays 0 and is rejected
// at build time.
type ResourcesFile struct {
	Account        string `yaml:"account,omitempty"`
	WallClockLimit string `yaml:"wall_clock_limit,omitempty"`
	NodeCount      *int   `yaml:"node_count,omitempty"`
	TaskCount      *int   `yaml:"task_count,omitempty"`
	GPUsPerNode    int    `yaml:"gpus_per_node,omitempty"`
}

// ArgPairFile is the YAML form of one extra (flag, value) pair.
type ArgPairFile struct {
	Flag  string `yaml:"flag"`
	Value string `yaml:"value"`
}

// Load reads a descriptor file and converts it to BuildOptions. Counts
// omitted from the file fall back to single-node, single-task.
func Load(path string) (BuildOptions, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return BuildOptions{}, errors.Wrapf(err, "failed to read descriptor file %q", path)
	}

	var f File
	if err := yaml.UnmarshalStrict(content, &f); err != nil {
		return BuildOptions{}, errors.Wrapf(err, "failed to parse descriptor file %q", path)
	}

	return f.BuildOptions()
}

// BuildOptions converts the file form into builder inputs.
func (f File) BuildOptions() (BuildOptions, error) {
	var wallClock time.Duration
	if f.Resources.WallClockLimit != "" {
		var err error
		wallClock, err = time.ParseDuration(f.Resources.WallClockLimit)
		if err != nil {
			return BuildOptions{}, errors.Wrapf(err, "invalid wall_clock_limit %q", f.Resources.WallClockLimit)
		}
	}

	nodeCount := 1
	if f.Resources.NodeCount != nil {
		nodeCount = *f.Resources.NodeCount
	}
	taskCount := 1
	if f.Resources.TaskCount != nil {
		taskCount = *f.Resources.TaskCount
	}

	extraArgs := make([]ArgPair, 0, len(f.ExtraArgs))
	for _, pair := range f.ExtraArgs {
		extraArgs = append(extraArgs, ArgPair{Flag: pair.Flag, Value: pair.Value})
	}

	return BuildOptions{
		JobName:        f.JobName,
		Model:          f.Model,
		TaskName:       f.TaskName,
		DatasetName:    f.DatasetName,
		VisibleDevices: f.VisibleDevices,
		TargetProgram:  f.TargetProgram,
		Resources: Resources{
			Account:        f.Resources.Account,
			WallClockLimit: wallClock,
			NodeCount:      nodeCount,
			TaskCount:      taskCount,
			GPUsPerNode:    f.Resources.GPUsPerNode,
		},
		Overrides:   f.Hyperparameters,
		Environment: f.Environment,
		ExtraArgs:   extraArgs,
	}, nil
}

// Marshal renders builder inputs back into the YAML file form.
func Marshal(opts BuildOptions) ([]byte, error) {
	extraArgs := make([]ArgPairFile, 0, len(opts.ExtraArgs))
	for _, pair := range opts.ExtraArgs {
		extraArgs = append(extraArgs, ArgPairFile{Flag: pair.Flag, Value: pair.Value})
	}

	wallClock := ""
	if opts.Resources.WallClockLimit > 0 {
		wallClock = opts.Resources.WallClockLimit.String()
	}

	var nodeCount, taskCount *int
	if opts.Resources.NodeCount != 0 {
		nodeCount = &opts.Resources.NodeCount
	}
	if opts.Resources.TaskCount != 0 {
		taskCount = &opts.Resources.TaskCount
	}

	f := File{
		JobName:        opts.JobName,
		TargetProgram:  opts.TargetProgram,
		Model:          opts.Model,
		TaskName:       opts.TaskName,
		DatasetName:    opts.DatasetName,
		VisibleDevices: opts.VisibleDevices,
		Resources: ResourcesFile{
			Account:        opts.Resources.Account,
			WallClockLimit: wallClock,
			NodeCount:      nodeCount,
			TaskCount:      taskCount,
			GPUsPerNode:    opts.Resources.GPUsPerNode,
		},
		Hyperparameters: opts.Overrides,
		Environment:     opts.Environment,
		ExtraArgs:       extraArgs,
	}

	content, err := yaml.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal descriptor file")
	}
	return content, nil
}
