package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"checkproof/internal/ipc"
)

func newSessionCommands(ctx *commandContext) []*cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login <code>",
		Short: "Link this device to an operator with a one-time code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Login(code)
				if err != nil {
					return fmt.Errorf("login: %w", err)
				}
				if ctx.json() {
					return writeJSON(cmd, resp.Session)
				}
				out := cmd.OutOrStdout()
				if !resp.Session.Unlocked {
					fmt.Fprintln(out, "Code accepted but the session is still locked; ask an administrator to check the operator link")
					return nil
				}
				fmt.Fprintf(out, "Logged in as %s\n", sessionLabel(resp.Session))
				return nil
			})
		},
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the operator session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Logout(); err != nil {
					return fmt.Errorf("logout: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the operator session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Whoami()
				if err != nil {
					return err
				}
				if ctx.json() {
					return writeJSON(cmd, resp.Session)
				}
				out := cmd.OutOrStdout()
				session := resp.Session
				if !session.Unlocked {
					fmt.Fprintln(out, "Not logged in")
					return nil
				}
				rows := [][]string{
					{"Operator", sessionLabel(session)},
					{"Operator ID", session.OperatorID},
					{"Tenant", session.TenantID},
					{"Linked", displayOrDash(session.LinkedAt)},
				}
				fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}

	return []*cobra.Command{loginCmd, logoutCmd, whoamiCmd}
}

func sessionLabel(session ipc.SessionInfo) string {
	if label := strings.TrimSpace(session.Label); label != "" {
		return label
	}
	return session.OperatorID
}

func displayOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
