package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/provider"
)

var (
	loginProvider  string
	loginName      string
	loginOrg       string
	loginToken     string
	loginWorkspace string
	loginUser      string
	loginDefault   bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Create or update a provider profile",
	Long: `Create or update a named provider profile, verifying the credential
with one authenticated call before it's persisted.

Example:
  mgit login --provider github --name work --token env:GITHUB_TOKEN`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginProvider, "provider", "", "provider kind: azuredevops|github|bitbucket|gitlab|gitea (required)")
	loginCmd.Flags().StringVar(&loginName, "name", "", "profile name (defaults to the provider kind)")
	loginCmd.Flags().StringVar(&loginOrg, "org", "", "organization/base URL")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "credential, or env:VAR to read from the environment")
	loginCmd.Flags().StringVar(&loginWorkspace, "workspace", "", "workspace (bitbucket only)")
	loginCmd.Flags().StringVar(&loginUser, "user", "", "username (bitbucket requires one)")
	loginCmd.Flags().BoolVar(&loginDefault, "default", false, "mark this profile as the default")
	_ = loginCmd.MarkFlagRequired("provider")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	kind := config.Kind(loginProvider)
	name := loginName
	if name == "" {
		name = loginProvider
	}

	profile := config.ProviderProfile{
		Name:      name,
		Kind:      kind,
		BaseURL:   loginOrg,
		User:      loginUser,
		Secret:    loginToken,
		Workspace: loginWorkspace,
		Default:   loginDefault,
	}

	// The profile is saved with the env:VAR reference as given; the
	// connection test uses the value it names.
	testProfile := profile
	if envVar, ok := strings.CutPrefix(loginToken, "env:"); ok {
		testProfile.Secret = os.Getenv(envVar)
	}

	p, err := provider.New(testProfile)
	if err != nil {
		return errs.New(errs.KindConfigError, "login", "", err.Error(), err)
	}
	if err := p.Authenticate(cmd.Context()); err != nil {
		return wrapCancelled(err)
	}
	if err := p.TestConnection(cmd.Context()); err != nil {
		return wrapCancelled(err)
	}

	cfg, path, err := loadConfigForWrite()
	if err != nil {
		return err
	}
	cfg.SaveProfile(profile)
	if err := config.Save(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "profile %q saved (%s)\n", name, kind)
	return nil
}
