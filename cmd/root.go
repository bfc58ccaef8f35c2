/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/linetran/internal/config"
	"github.com/valpere/linetran/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "linetran",
	Short: "Line-preserving batch translator for long documents",
	Long: `A CLI application that translates long plain-text documents through the
Anthropic Message Batches API (or OpenRouter), one batch of lines at a time.

Every batch carries a summary of everything translated before it, and the
original line layout, blank lines included, is restored in the output.

Settings are read from flags, LINETRAN_* environment variables and an
optional linetran.yaml config file.

Use "linetran translate --help" for translation options.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ReadFile(v, cfgFile); err != nil {
			return err
		}
		logging.New(config.LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		})
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./linetran.yaml)")
	rootCmd.PersistentFlags().String("db", "./data/linetran.db", "Database path")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	v.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}
