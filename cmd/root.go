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

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"launch-toolkit/pkg/logging"
)

var (
	cfgFile string
	verbose bool

	// siteConfig holds site-wide defaults loaded from the optional config
	// file. Flags always win over these.
	siteConfig SiteConfig
)

// SiteConfig carries per-site defaults so individual submissions don't have
// to repeat them.
type SiteConfig struct {
	Account        string        `mapstructure:"account"`
	VisibleDevices string        `mapstructure:"visible_devices"`
	WallClockLimit time.Duration `mapstructure:"wall_clock_limit"`
	TargetProgram  string        `mapstructure:"target_program"`
}

var rootCmd = &cobra.Command{
	Use:   "xlaunch",
	Short: "Declare and execute reproducible training invocations.",
	Long: `xlaunch replaces ad hoc cluster wrapper scripts with a single
declarative launch descriptor: resource request, environment, hyperparameters
and target program, validated once and materialized into the trainer's
command line. Descriptors can be executed locally or rendered into a SLURM
batch script and submitted through sbatch.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(verbose)
		loadSiteConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a site config file with default account, devices and wall-clock limit.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug output.")
}

func loadSiteConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		logging.Fatal("Failed to read config file %s: %v", cfgFile, err)
	}
	if err := viper.Unmarshal(&siteConfig, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
		logging.Fatal("Failed to parse config file %s: %v", cfgFile, err)
	}
	logging.Debug("Loaded site config from %s", cfgFile)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
