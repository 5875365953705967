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

// Package descriptor builds validated launch descriptors for training jobs.
// A LaunchDescriptor is the structured record of resources, environment and
// arguments for one job submission; it is constructed once, consumed once by
// the launch step, and never mutated afterward.
package descriptor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Resources holds the scheduler-facing resource request. The outer scheduler
// enforces these limits; this toolkit only passes them through.
type Resources struct {
	Account        string
	WallClockLimit time.Duration
	NodeCount      int
	TaskCount      int
	GPUsPerNode    int
}

// ArgPair is one (flag, value) pair passed verbatim to the target program.
type ArgPair struct {
	Flag  string
	Value string
}

// LaunchDescriptor fully describes one training invocation.
type LaunchDescriptor struct {
	JobName         string
	Resources       Resources
	Environment     map[string]string
	Hyperparameters map[string]string
	TargetProgram   string
	TargetArgs      []ArgPair
	Flags           []string
	OutputDir       string
}

// BuildOptions are the inputs to Build. Every hyperparameter override is
// optional; absent ones fall back to the schema defaults.
type BuildOptions struct {
	JobName        string
	Model          string
	TaskName       string
	DatasetName    string
	VisibleDevices string
	TargetProgram  string
	Resources      Resources
	Overrides      map[string]interface{}
	Environment    map[string]string
	ExtraArgs      []ArgPair
}

// InvalidConfigurationError reports descriptor fields that failed validation
// before any launch was attempted.
type InvalidConfigurationError struct {
	Reason error
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason.Error()
}

func (e *InvalidConfigurationError) Unwrap() error {
	return e.Reason
}

// Build assembles a fully-populated LaunchDescriptor from the given options.
// Overrides are applied on top of the schema defaults, every value is
// validated, and the output directory is derived from the dataset name and
// model identity. All validation failures are accumulated and returned as a
// single InvalidConfigurationError.
func Build(opts BuildOptions) (*LaunchDescriptor, error) {
	var errs *multierror.Error

	if opts.Model == "" {
		errs = multierror.Append(errs, errors.New("model identity must not be empty"))
	}
	if opts.DatasetName == "" {
		errs = multierror.Append(errs, errors.New("dataset name must not be empty"))
	}
	if opts.TargetProgram == "" {
		errs = multierror.Append(errs, errors.New("target program must not be empty"))
	}
	errs = multierror.Append(errs, validateResources(opts.Resources)...)

	for name := range opts.Overrides {
		if _, ok := schemaParameter(name); !ok {
			errs = multierror.Append(errs, errors.Errorf("unknown hyperparameter %q", name))
		}
	}

	owned := builderOwnedFlags()
	for _, pair := range opts.ExtraArgs {
		if _, ok := owned[pair.Flag]; ok {
			errs = multierror.Append(errs, errors.Errorf("extra argument --%s collides with a builder-materialized flag", pair.Flag))
		}
	}

	hyperparameters := make(map[string]string, len(Schema))
	for _, p := range Schema {
		value := p.Default
		if override, ok := opts.Overrides[p.Name]; ok {
			value = override
		}
		if err := p.Validate(p.Name, value); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		hyperparameters[p.Name] = formatValue(value)
	}

	outputDir, err := DeriveOutputDir(opts.DatasetName, opts.Model)
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, &InvalidConfigurationError{Reason: err}
	}

	environment := map[string]string{
		"TASK_NAME":    opts.TaskName,
		"DATASET_NAME": opts.DatasetName,
	}
	if opts.VisibleDevices != "" {
		environment["CUDA_VISIBLE_DEVICES"] = opts.VisibleDevices
	}
	for k, v := range opts.Environment {
		environment[k] = v
	}

	jobName := opts.JobName
	if jobName == "" {
		jobName = opts.DatasetName + "-" + modelFamily(opts.Model)
	}

	targetArgs := []ArgPair{
		{Flag: "model_name_or_path", Value: opts.Model},
		{Flag: "task_name", Value: opts.TaskName},
		{Flag: "dataset_name", Value: opts.DatasetName},
	}
	for _, p := range Schema {
		targetArgs = append(targetArgs, ArgPair{Flag: p.Flag, Value: hyperparameters[p.Name]})
	}
	targetArgs = append(targetArgs, ArgPair{Flag: "output_dir", Value: outputDir})
	targetArgs = append(targetArgs, opts.ExtraArgs...)

	return &LaunchDescriptor{
		JobName:         jobName,
		Resources:       opts.Resources,
		Environment:     environment,
		Hyperparameters: hyperparameters,
		TargetProgram:   opts.TargetProgram,
		TargetArgs:      targetArgs,
		Flags:           []string{"do_train", "overwrite_output_dir", "prefix"},
		OutputDir:       outputDir,
	}, nil
}

// Validate re-checks the invariants of an already-built descriptor. Launchers
// call this before execution so descriptors loaded from files get the same
// checks as ones built from flags.
func (d *LaunchDescriptor) Validate() error {
	var errs *multierror.Error

	if d.TargetProgram == "" {
		errs = multierror.Append(errs, errors.New("target program must not be empty"))
	}
	if d.OutputDir == "" {
		errs = multierror.Append(errs, errors.New("output directory must not be empty"))
	}
	errs = multierror.Append(errs, validateResources(d.Resources)...)

	if err := errs.ErrorOrNil(); err != nil {
		return &InvalidConfigurationError{Reason: err}
	}
	return nil
}

// builderOwnedFlags lists every target-program flag the builder materializes
// itself. Extra arguments may not reuse them: each flag appears exactly once
// in the final argument list.
func builderOwnedFlags() map[string]struct{} {
	owned := map[string]struct{}{
		"model_name_or_path":   {},
		"task_name":            {},
		"dataset_name":         {},
		"output_dir":           {},
		"do_train":             {},
		"overwrite_output_dir": {},
		"prefix":               {},
	}
	for _, p := range Schema {
		owned[p.Flag] = struct{}{}
	}
	return owned
}

func validateResources(r Resources) []error {
	var errs []error
	if r.NodeCount < 1 {
		errs = append(errs, errors.Errorf("node count must be at least 1, got %d", r.NodeCount))
	}
	if r.TaskCount < 1 {
		errs = append(errs, errors.Errorf("task count must be at least 1, got %d", r.TaskCount))
	}
	if r.GPUsPerNode < 0 {
		errs = append(errs, errors.Errorf("GPUs per node must not be negative, got %d", r.GPUsPerNode))
	}
	return errs
}

// Args flattens the descriptor into the argument list handed to the target
// program: named arguments in schema order, then presence-only switches.
func (d *LaunchDescriptor) Args() []string {
	args := make([]string, 0, 2*len(d.TargetArgs)+len(d.Flags))
	for _, pair := range d.TargetArgs {
		args = append(args, "--"+pair.Flag, pair.Value)
	}
	for _, flag := range d.Flags {
		args = append(args, "--"+flag)
	}
	return args
}

// EnvironList renders the environment map as KEY=value entries in sorted key
// order, suitable for exec.Cmd.Env.
func (d *LaunchDescriptor) EnvironList() []string {
	keys := make([]string, 0, len(d.Environment))
	for k := range d.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, d.Environment[k]))
	}
	return env
}

// DeriveOutputDir derives the checkpoint directory deterministically from the
// dataset name and model identity, so concurrent jobs on different pairs
// never collide: {sst2, roberta-large} -> checkpoints/sst2-roberta/.
func DeriveOutputDir(datasetName, model string) (string, error) {
	if datasetName == "" || model == "" {
		return "", errors.New("output directory cannot be constructed: dataset name and model identity are required")
	}
	return fmt.Sprintf("checkpoints/%s-%s/", datasetName, modelFamily(model)), nil
}

// modelFamily truncates a model identifier at its first dash:
// "roberta-large" -> "roberta".
func modelFamily(model string) string {
	if idx := strings.Index(model, "-"); idx > 0 {
		return model[:idx]
	}
	return model
}
