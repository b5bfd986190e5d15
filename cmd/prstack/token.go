package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack/github"
)

func newTokenCmd(a *app) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored GitHub token.",
	}

	setCmd := &cobra.Command{
		Use:   "set [token]",
		Short: "Store a GitHub token (read from stdin when omitted).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("empty token; use 'prstack token clear' to remove it")
			}
			if err := a.creds.SetToken(token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored token %s in %s\n", github.MaskToken(token), a.creds.Path())
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored GitHub token.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.creds.SetToken(""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed stored token")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the GitHub token comes from.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if a.creds.Stored() {
				fmt.Fprintf(out, "Token file: %s\n", a.creds.Path())
			} else {
				fmt.Fprintf(out, "Token file: none (%s)\n", a.creds.Path())
			}
			a.seedToken(cmd.Context())
			token, ok := a.creds.Token()
			if !ok {
				fmt.Fprintln(out, "No GitHub token available; lineage will not be resolved")
				return nil
			}
			fmt.Fprintf(out, "Token %s (source: %s)\n", github.MaskToken(token), a.tokenSource)
			return nil
		},
	}

	tokenCmd.AddCommand(setCmd, clearCmd, statusCmd)
	return tokenCmd
}
