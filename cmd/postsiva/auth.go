package main

import (
	"context"
	"errors"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/postsiva/postsiva-cli/internal/auth"
	"github.com/postsiva/postsiva-cli/internal/session"
)

// promptPassword asks for a password unless one was given on the command line
func promptPassword(given string) (string, error) {
	if given != "" {
		return given, nil
	}
	password, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

func printSignedIn(resp *auth.Response) {
	name := resp.User.Username
	if name == "" {
		name = resp.User.Email
	}
	pterm.Success.Printfln("Signed in as %s", pterm.LightGreen(name))
}

func newSignupCmd() *cobra.Command {
	var req auth.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a Postsiva account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(req.Password)
			if err != nil {
				return err
			}
			req.Password = password

			var orchestrator *auth.Orchestrator
			return withApp(cmd.Context(), func(ctx context.Context) error {
				resp, err := orchestrator.Signup(ctx, req)
				if err != nil {
					return err
				}
				printSignedIn(resp)
				return nil
			}, &orchestrator)
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.Username, "username", "", "Account username")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "Your full name")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var req auth.LoginRequest

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Postsiva",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(req.Password)
			if err != nil {
				return err
			}
			req.Password = password

			var orchestrator *auth.Orchestrator
			return withApp(cmd.Context(), func(ctx context.Context) error {
				resp, err := orchestrator.Login(ctx, req)
				if err != nil {
					return err
				}
				printSignedIn(resp)
				return nil
			}, &orchestrator)
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var orchestrator *auth.Orchestrator
			return withApp(cmd.Context(), func(ctx context.Context) error {
				orchestrator.Logout(ctx)
				pterm.Success.Println("Signed out")
				return nil
			}, &orchestrator)
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var orchestrator *auth.Orchestrator
			return withApp(cmd.Context(), func(ctx context.Context) error {
				sess, err := orchestrator.RequireSession()
				if err != nil {
					return err
				}
				return pterm.DefaultTable.WithData(sessionTable(sess)).Render()
			}, &orchestrator)
		},
	}
}

func sessionTable(sess *session.Session) pterm.TableData {
	data := pterm.TableData{
		{"Email", sess.User.Email},
		{"Username", sess.User.Username},
		{"Full name", sess.User.FullName},
		{"User ID", sess.User.ID},
	}
	if exp, ok := session.TokenExpiry(sess.Token); ok {
		remaining := time.Until(exp).Round(time.Minute)
		if remaining > 0 {
			data = append(data, []string{"Token expires", exp.Local().Format(time.RFC1123) + " (in " + remaining.String() + ")"})
		} else {
			data = append(data, []string{"Token expires", pterm.Red("expired " + exp.Local().Format(time.RFC1123))})
		}
	}
	return data
}
