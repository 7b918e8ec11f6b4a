package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/clawback/internal/cli"
	"github.com/Veraticus/clawback/internal/pipeline"
	"github.com/Veraticus/clawback/internal/service"
	"github.com/Veraticus/clawback/internal/tui"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <case>",
		Short: "Confirm or dismiss flagged transactions",
		Long: `Opens an interactive list of the case's flagged transactions. Confirming or
dismissing one stores a review tag next to the system tags; re-evaluation
keeps it. Use --confirm or --dismiss to tag a single transaction without
the interactive screen.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			caseID := args[0]
			confirm, _ := cmd.Flags().GetInt64("confirm")
			dismiss, _ := cmd.Flags().GetInt64("dismiss")
			if confirm != 0 && dismiss != 0 {
				return fmt.Errorf("--confirm and --dismiss are mutually exclusive")
			}

			settings, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			orch := newOrchestrator(store, settings)

			if id, tag := reviewTarget(confirm, dismiss); id != 0 {
				txn, err := store.GetTransaction(ctx, caseID, id)
				if err != nil {
					return err
				}
				updated, err := orch.SetUserTags(ctx, caseID, id, pipeline.ToggleReview(txn.UserTags, tag))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Transaction %d tagged %v", id, updated.UserTags)))
				return nil
			}

			if _, err := store.GetCase(ctx, caseID); err != nil {
				return err
			}
			txns, err := store.ListTransactions(ctx, caseID, service.TransactionFilter{CanonicalOnly: true})
			if err != nil {
				return err
			}
			evals, err := store.ListRuleEvaluations(ctx, caseID)
			if err != nil {
				return err
			}

			n, err := tui.Run(ctx, tui.NewModel(ctx, orch, caseID, tui.BuildItems(txns, evals)))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("%d review decisions saved", n)))
			return nil
		},
	}
	cmd.Flags().Int64("confirm", 0, "Toggle the confirmed tag on one transaction")
	cmd.Flags().Int64("dismiss", 0, "Toggle the dismissed tag on one transaction")
	return cmd
}

func reviewTarget(confirm, dismiss int64) (int64, string) {
	if confirm != 0 {
		return confirm, pipeline.TagReviewConfirmed
	}
	return dismiss, pipeline.TagReviewDismissed
}
