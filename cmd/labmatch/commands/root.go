// Package commands defines all Cobra CLI commands for the labmatch binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/labmatch-go/internal/audit"
	"github.com/54b3r/labmatch-go/internal/config"
	"github.com/54b3r/labmatch-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "labmatch",
		Short: "labmatch: find and explain researcher matches for a project request",
		Long: `labmatch matches a company's project request against a researcher
database and explains, for every candidate, why they fit.

Three retrieval patterns are available:
  A  researcher keywords only
  B  keywords plus research projects
  C  keywords plus publications

Backends are selected via environment variables (MODEL_PROVIDER,
EMBEDDING_PROVIDER, INDEX_BACKEND) or a YAML config file
(~/.labmatch/config.yaml). A .env file in the working directory is loaded
first and never overrides variables already set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			if err := config.LoadDotEnv(log, files...); err != nil {
				return err
			}

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(logging.New(), cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.labmatch/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a dotenv file (default: ./.env)")

	root.AddCommand(
		NewSearchCmd(),
		NewCompareCmd(),
		NewPatternsCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
