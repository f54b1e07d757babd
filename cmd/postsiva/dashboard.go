package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/postsiva/postsiva-cli/internal/auth"
	"github.com/postsiva/postsiva-cli/internal/tiktok"
	"github.com/postsiva/postsiva-cli/internal/tui"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the TikTok profile dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				orchestrator *auth.Orchestrator
				profiles     *tiktok.ProfileOrchestrator
			)
			return withApp(cmd.Context(), func(ctx context.Context) error {
				if _, err := orchestrator.RequireSession(); err != nil {
					return err
				}
				return tui.Run(ctx, profiles, tea.WithAltScreen())
			}, &orchestrator, &profiles)
		},
	}
}
