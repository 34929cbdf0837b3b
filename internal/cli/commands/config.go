package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/peak/internal/cli/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration after merging defaults, the config file,
PEAK_* environment variables and flags. The output is valid peak.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			data, err := yaml.Marshal(cc.Cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			if file := config.GetConfigFileUsed(); file != "" {
				cc.Renderer.Printf("# %s\n", file)
			}
			cc.Renderer.Printf("%s", data)
			return nil
		},
	}
}
