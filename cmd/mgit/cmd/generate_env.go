package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const generateEnvTemplate = `global:
  default_concurrency: 4
  default_update_mode: skip
  default_provider: ""
providers:
  example:
    kind: github
    url: ""
    token: env:GITHUB_TOKEN
`

var generateEnvCmd = &cobra.Command{
	Use:   "generate-env",
	Short: "Print a stub configuration file to stdout",
	Long: `Print a minimal config.yaml skeleton to stdout; redirect it to
$XDG_CONFIG_HOME/mgit/config.yaml (or the path named by MGIT_CONFIG)
and edit it in place.

Example:
  mgit generate-env > ~/.config/mgit/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.OutOrStdout(), generateEnvTemplate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateEnvCmd)
}
