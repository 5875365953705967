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
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Parameter declares a single tunable hyperparameter: its canonical name, the
// flag it maps to on the target program's command line, its default value and
// its validation predicate. The schema below is the single place where
// defaults live.
type Parameter struct {
	Name     string
	Flag     string
	Default  interface{}
	Validate func(name string, value interface{}) error
}

// Schema enumerates every hyperparameter accepted by the builder, in the
// order they are materialized into the argument list.
var Schema = []Parameter{
	{Name: "max-seq-length", Flag: "max_seq_length", Default: 128, Validate: positiveInt},
	{Name: "batch-size", Flag: "per_device_train_batch_size", Default: 32, Validate: positiveInt},
	{Name: "learning-rate", Flag: "learning_rate", Default: 5e-3, Validate: positiveFloat},
	{Name: "epochs", Flag: "num_train_epochs", Default: 50, Validate: positiveInt},
	{Name: "prefix-length", Flag: "pre_seq_len", Default: 64, Validate: positiveInt},
	{Name: "dropout", Flag: "hidden_dropout_prob", Default: 0.1, Validate: probability},
	{Name: "seed", Flag: "seed", Default: 11, Validate: nonNegativeInt},
	{Name: "save-strategy", Flag: "save_strategy", Default: "no", Validate: oneOf("no", "steps", "epoch")},
	{Name: "eval-strategy", Flag: "evaluation_strategy", Default: "epoch", Validate: oneOf("no", "steps", "epoch")},
}

// schemaParameter looks up a parameter by canonical name.
func schemaParameter(name string) (Parameter, bool) {
	for _, p := range Schema {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

func positiveInt(name string, value interface{}) error {
	v, err := cast.ToIntE(value)
	if err != nil {
		return errors.Wrapf(err, "parameter %q must be an integer", name)
	}
	if v <= 0 {
		return errors.Errorf("parameter %q must be positive, got %d", name, v)
	}
	return nil
}

func nonNegativeInt(name string, value interface{}) error {
	v, err := cast.ToIntE(value)
	if err != nil {
		return errors.Wrapf(err, "parameter %q must be an integer", name)
	}
	if v < 0 {
		return errors.Errorf("parameter %q must not be negative, got %d", name, v)
	}
	return nil
}

func positiveFloat(name string, value interface{}) error {
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return errors.Wrapf(err, "parameter %q must be a number", name)
	}
	if v <= 0 {
		return errors.Errorf("parameter %q must be positive, got %v", name, value)
	}
	return nil
}

func probability(name string, value interface{}) error {
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return errors.Wrapf(err, "parameter %q must be a number", name)
	}
	if v < 0 || v >= 1 {
		return errors.Errorf("parameter %q must be in [0, 1), got %v", name, value)
	}
	return nil
}

func oneOf(allowed ...string) func(name string, value interface{}) error {
	return func(name string, value interface{}) error {
		s, err := cast.ToStringE(value)
		if err != nil {
			return errors.Wrapf(err, "parameter %q must be a string", name)
		}
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return errors.Errorf("parameter %q must be one of %v, got %q", name, allowed, s)
	}
}

// formatValue renders a parameter value the way it appears on the target
// program's command line.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
