package main

import (
	"fmt"

	"github.com/Veraticus/clawback/internal/cli"
	"github.com/Veraticus/clawback/internal/enrichment"
	"github.com/spf13/cobra"
)

func dedupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup <case>",
		Short: "Mark transactions that appear in more than one statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := newOrchestrator(store, settings).RunDedup(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%d checked, %d new duplicates, %d canonical",
				stats.Checked, stats.Duplicates, stats.Canonical)))
			return nil
		},
	}
}

func evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <case>",
		Short: "Re-run the avoidance rules for a case",
		Long: `Replaces all rule evaluations of the case and refreshes the system tags of
its transactions. Run it after changing case dates or counterparty roles.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := newOrchestrator(store, settings).EvaluateCase(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%d transactions evaluated", n)))
			return nil
		},
	}
}

func enrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich <case>",
		Short: "Flag shareholders, managers and affiliates among counterparties",
		Long: `Looks up the debtor's register profile and marks matching counterparties
as related parties. Without --profile only the enrichment status is recorded.
The case is evaluated again afterwards unless --no-evaluate is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			profile, _ := cmd.Flags().GetString("profile")
			noEvaluate, _ := cmd.Flags().GetBool("no-evaluate")

			settings, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var provider enrichment.Provider = enrichment.NoopProvider{}
			if profile != "" {
				provider = enrichment.FileProvider{Path: profile}
			}

			summary, err := enrichment.NewService(store, provider).EnrichCase(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s: %d counterparties checked, %d flagged as related",
				summary.LegalName, summary.Checked, summary.Flagged)))

			if noEvaluate {
				return nil
			}
			n, err := newOrchestrator(store, settings).EvaluateCase(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%d transactions evaluated", n)))
			return nil
		},
	}
	cmd.Flags().String("profile", "", "YAML file with the debtor's register profile")
	cmd.Flags().Bool("no-evaluate", false, "skip re-running the rules")
	return cmd
}
