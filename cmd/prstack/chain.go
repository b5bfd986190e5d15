package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/prstack/pkg/gitctx"
	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
)

func newChainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chain <owner/repo> <head-branch>",
		Short: "Print the branch chain from a head branch down to its trunk as JSON.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := prstack.ParseRepo(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a.seedToken(ctx)

			client := a.newClient()
			defer a.closeClient(client)

			chain, err := a.newResolver(client).ResolveChain(ctx, repo, args[1])
			switch {
			case errors.Is(err, prstack.ErrCycleOrTooDeep):
				a.logger.WarnContext(ctx, "chain truncated", "head", args[1], "nodes", chain.Len())
			case errors.Is(err, prstack.ErrNoCredential):
				return fmt.Errorf("%w: run 'prstack token set', set GITHUB_TOKEN or log in with gh", err)
			case err != nil:
				return err
			}
			return writeJSON(cmd.OutOrStdout(), chain)
		},
	}
}

func newClassifyCmd(a *app) *cobra.Command {
	var repo, base, head string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a pull request as stacked or standard without network access.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r prstack.Repo
			if repo != "" {
				var err error
				if r, err = prstack.ParseRepo(repo); err != nil {
					return err
				}
			}
			trunks := prstack.NewTrunkSet(a.cfg.TrunkBranches...)
			return writeJSON(cmd.OutOrStdout(), trunks.Classify(r.Owner, r.Name, base, head))
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Repository as owner/name")
	cmd.Flags().StringVar(&base, "base", "", "Base branch of the pull request")
	cmd.Flags().StringVar(&head, "head", "", "Head branch of the pull request")
	_ = cmd.MarkFlagRequired("base") //nolint:errcheck // flag exists
	_ = cmd.MarkFlagRequired("head") //nolint:errcheck // flag exists
	return cmd
}

func newContextCmd(a *app) *cobra.Command {
	var remote string
	var resolve bool
	cmd := &cobra.Command{
		Use:   "context [path]",
		Short: "Show the pull request context of a local checkout.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			checkout, err := gitctx.Open(path, gitctx.WithRemote(remote),
				gitctx.WithTrunkNames(a.cfg.TrunkBranches...), gitctx.WithLogger(a.logger))
			if err != nil {
				return err
			}
			page, err := checkout.Extract()
			if err != nil {
				return err
			}

			pr := prstack.NewTrunkSet(a.cfg.TrunkBranches...).Classify(page.Owner, page.Repo, page.Base, page.Head)
			if !resolve {
				return writeJSON(cmd.OutOrStdout(), pr)
			}

			ctx := cmd.Context()
			a.seedToken(ctx)
			client := a.newClient()
			defer a.closeClient(client)

			chain, err := a.newResolver(client).ResolveChain(ctx, pr.Repo(), pr.HeadBranch)
			if err != nil && !errors.Is(err, prstack.ErrCycleOrTooDeep) {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), pr.WithChain(chain))
		},
	}
	cmd.Flags().StringVar(&remote, "remote", gitctx.DefaultRemote, "Remote naming the GitHub repository")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "Also resolve the branch chain")
	return cmd
}
