/*
Copyright © 2026 Your Name

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
	"context"
	"fmt"
	"os"

	"dailybrief/internal/config"
	"dailybrief/internal/core"
	"dailybrief/internal/logger"
	"dailybrief/internal/store"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dailybrief",
	Short: "dailybrief curates personalized daily digests from collected articles",
	Long: `dailybrief takes the articles collected from a user's sources,
removes duplicates, groups them by topic, ranks them by recency and
reading history, and stores the result as a daily digest.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dailybrief.yaml)")
}

// initConfig loads the layered configuration before any command runs.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	if cfg.App.Debug {
		logger.SetLevel("debug")
	} else if cfg.App.LogLevel != "" {
		logger.SetLevel(cfg.App.LogLevel)
	}
}

// openStore opens the sqlite-backed store in the configured data directory.
func openStore() (*store.Store, error) {
	s, err := store.NewStore(config.GetDataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

// resolveUser looks up a user by email, the identifier every command takes.
func resolveUser(ctx context.Context, s *store.Store, email string) (*core.User, error) {
	if email == "" {
		return nil, fmt.Errorf("--user is required")
	}
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", email, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", email)
	}
	return user, nil
}

func fatal(msg string, err error) {
	log := logger.Get()
	log.Error().Err(err).Msg(msg)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
