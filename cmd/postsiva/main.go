package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/logger"
)

func main() {
	Execute()
}

// cfg is loaded once flags are parsed
var cfg *config.Config

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "postsiva",
	Short: "Schedule and publish TikTok content from the terminal",
	Long: `postsiva signs you in to the Postsiva backend, links your TikTok account
and publishes photo posts and draft videos through it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if versionFlag, _ := cmd.Flags().GetBool("version"); versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}

		loaded, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		if err := logger.InitLogger(&loaded.Logging); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer func() { _ = logger.Sync() }()

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	config.InitFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newSignupCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newTikTokCmd(),
		newPostCmd(),
		newDashboardCmd(),
	)
}
