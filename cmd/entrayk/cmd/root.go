// Package cmd implements the entrayk CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JMarkstrom/entraYK/internal/config"
	"github.com/JMarkstrom/entraYK/internal/version"
	"github.com/JMarkstrom/entraYK/pkg/graph"
)

var (
	// Global flags
	outputFormat string
	cfgPath      string
	logLevel     string
	tenantFlag   string

	// Loaded configuration, populated in PersistentPreRunE.
	cfg *config.Config

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "entrayk",
	Short: "Provision and audit hardware security keys as Entra passkeys",
	Long: `entrayk provisions YubiKey-class FIDO2 security keys as passkey
credentials in a Microsoft Entra tenant, and audits which users have
which keys registered.

It covers the full provisioning flow: tenant passkey policy configuration,
on-behalf-of credential enrollment with a random PIN per key, and
registration reporting joined against the FIDO Alliance device metadata.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "completion" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if tenantFlag != "" {
			cfg.TenantID = tenantFlag
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		log.SetLevel(level)
		log.SetOutput(os.Stderr)
		return nil
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for entrayk.

To load completions:

Bash:
  # Add to ~/.bashrc:
  source <(entrayk completion bash)

Zsh:
  # Add to ~/.zshrc:
  source <(entrayk completion zsh)

Fish:
  # Add to ~/.config/fish/completions/:
  entrayk completion fish > ~/.config/fish/completions/entrayk.fish

PowerShell:
  # Add to your PowerShell profile:
  entrayk completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		default:
			return fmt.Errorf("unknown shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ~/.entrayk/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&tenantFlag, "tenant", "", "Entra tenant ID or domain (overrides config)")
	rootCmd.AddCommand(completionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// OutputFormat returns the selected --output format.
func OutputFormat() string {
	return outputFormat
}

// newSession builds a directory session from the loaded config. Write
// scopes are requested only by commands that mutate the tenant.
func newSession(scopes []string) (*graph.Session, error) {
	return graph.NewSession(graph.SessionConfig{
		TenantID:  cfg.TenantID,
		ClientID:  cfg.ClientID,
		Scopes:    scopes,
		CachePath: cfg.TokenCache,
		Prompt: func(verificationURI, userCode string) {
			fmt.Printf("To sign in, open %s and enter the code %s\n", verificationURI, userCode)
		},
		Log: log,
	})
}

// formatOutput handles output formatting based on the --output flag.
func formatOutput(data interface{}) error {
	switch outputFormat {
	case "json":
		return outputJSON(data)
	case "yaml":
		return outputYAML(data)
	default:
		// Table format is handled by each command
		return nil
	}
}

func outputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func outputYAML(data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
