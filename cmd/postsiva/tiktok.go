package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/postsiva/postsiva-cli/internal/handshake"
	"github.com/postsiva/postsiva-cli/internal/tiktok"
)

func newTikTokCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiktok",
		Short: "Manage the linked TikTok account",
	}
	cmd.AddCommand(newTikTokStatusCmd(), newTikTokConnectCmd(), newTikTokProfileCmd())
	return cmd
}

func newTikTokStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether a TikTok account is linked",
		RunE: func(cmd *cobra.Command, args []string) error {
			var links *tiktok.LinkOrchestrator
			return withApp(cmd.Context(), func(ctx context.Context) error {
				token, err := links.CheckToken(ctx)
				if err != nil {
					pterm.Warning.Println(notLinkedHint)
					return err
				}
				if _, err := linkedAccount(token); err != nil {
					pterm.Warning.Println(notLinkedHint)
					return nil
				}
				printLink(token)
				return nil
			}, &links)
		},
	}
}

const notLinkedHint = "No TikTok account linked. Run `postsiva tiktok connect`."

var errNotLinked = errors.New("no TikTok account linked")

// linkedAccount accepts token only when it carries an access token
func linkedAccount(token *tiktok.TokenData) (*tiktok.TokenData, error) {
	if token == nil || token.AccessToken == "" {
		return nil, errNotLinked
	}
	return token, nil
}

func linkTable(token *tiktok.TokenData) pterm.TableData {
	return pterm.TableData{
		{"Open ID", token.OpenID},
		{"Scope", strings.ReplaceAll(token.Scope, ",", ", ")},
		{"Expires at", token.ExpiresAt},
	}
}

func printLink(token *tiktok.TokenData) {
	pterm.Success.Println("TikTok account linked")
	_ = pterm.DefaultTable.WithData(linkTable(token)).Render()
}

// settle maps a finished handshake onto the command result. linked reports
// whether the backend should be asked to confirm the new account.
func settle(st handshake.Status) (linked bool, err error) {
	switch st.Phase {
	case handshake.PhaseConnected:
		return true, nil
	case handshake.PhaseIdle:
		if st.Error != "" {
			return false, errors.New(st.Error)
		}
		return false, nil
	default:
		if st.Error == "" {
			return false, errors.New(handshake.MsgConnectFailed)
		}
		return false, errors.New(st.Error)
	}
}

func newTikTokConnectCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Link a TikTok account in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				opener *handshake.Opener
				links  *tiktok.LinkOrchestrator
				nav    navigation
			)
			return withApp(cmd.Context(), func(ctx context.Context) error {
				defer opener.Close()

				if err := opener.Connect(ctx); err != nil {
					return errors.New(handshake.MsgInitiateFailed)
				}

				waitCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				st := opener.Status()
				if st.Phase == handshake.PhaseConnecting {
					spinner, _ := pterm.DefaultSpinner.Start("Waiting for TikTok authorization in your browser...")
					var err error
					if st, err = opener.Wait(waitCtx); err != nil {
						spinner.Fail("Timed out waiting for authorization")
						return err
					}
					switch st.Phase {
					case handshake.PhaseConnected:
						spinner.Success("TikTok authorization received")
					case handshake.PhaseIdle:
						spinner.Warning("Authorization window closed before completing")
					default:
						spinner.Fail(st.Error)
					}
				}

				linked, err := settle(st)
				if err != nil || !linked {
					return err
				}

				select {
				case dest := <-nav:
					pterm.Debug.Printfln("redirected to %s", dest)
				case <-waitCtx.Done():
				}

				token, err := links.CheckToken(ctx)
				if err != nil {
					return fmt.Errorf("verify link: %w", err)
				}
				if _, err := linkedAccount(token); err != nil {
					return fmt.Errorf("verify link: %w", err)
				}
				printLink(token)
				return nil
			}, &opener, &links, &nav)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the authorization")
	return cmd
}

func newTikTokProfileCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the linked TikTok profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			var profiles *tiktok.ProfileOrchestrator
			return withApp(cmd.Context(), func(ctx context.Context) error {
				res, err := profiles.LoadProfile(ctx, refresh)
				if err != nil {
					return err
				}
				if res.Profile == nil {
					pterm.Warning.Println("The backend returned no profile")
					return nil
				}
				printProfile(res)
				return nil
			}, &profiles)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the backend's profile cache")
	return cmd
}

func printProfile(res *tiktok.ProfileResult) {
	p := res.Profile
	title := p.DisplayName
	if p.Username != "" {
		title += " (@" + p.Username + ")"
	}
	if p.IsVerified {
		title += " ✓"
	}
	pterm.DefaultSection.Println(title)
	if p.BioDescription != "" {
		pterm.Println(p.BioDescription)
	}

	count := func(n int64) string {
		return fmt.Sprintf("%s (%s)", tiktok.FormatCount(n), tiktok.GroupDigits(n))
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Followers", "Following", "Likes", "Videos"},
		{count(p.FollowerCount), count(p.FollowingCount), count(p.LikesCount), count(p.VideoCount)},
	}).Render()

	if res.Source != "" || res.LastUpdated != "" {
		pterm.Info.Printfln("source: %s, updated: %s", res.Source, res.LastUpdated)
	}
}
