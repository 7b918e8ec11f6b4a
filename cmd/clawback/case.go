package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/clawback/internal/cli"
	"github.com/Veraticus/clawback/internal/config"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/service"
	"github.com/spf13/cobra"
)

func caseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Manage insolvency cases",
	}
	cmd.AddCommand(caseImportCmd())
	cmd.AddCommand(caseShowCmd())
	cmd.AddCommand(caseListCmd())
	return cmd
}

func caseImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.yaml>",
		Short: "Create or update a case and register its documents",
		Long: `Reads a YAML manifest with the case data and the statement files that
belong to it. Document paths are relative to the manifest. Files that are
already registered for the case are skipped, so importing again is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			manifest, err := config.LoadCaseManifest(args[0])
			if err != nil {
				return err
			}
			c, err := manifest.Case()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx, settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SaveCase(ctx, c); err != nil {
				return fmt.Errorf("failed to save case: %w", err)
			}

			existing, err := store.ListDocuments(ctx, c.ID)
			if err != nil {
				return err
			}
			known := make(map[string]bool, len(existing))
			for _, d := range existing {
				known[d.FilePath] = true
			}

			var added int
			for _, md := range manifest.Documents {
				path := config.ResolveDocumentPath(args[0], md.Path)
				if known[path] {
					continue
				}
				if _, err := os.Stat(path); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatWarning(fmt.Sprintf("skipping %s: %v", md.Path, err)))
					continue
				}
				doc := &model.Document{
					CaseID:       c.ID,
					DocumentType: md.Type,
					FileName:     filepath.Base(path),
					FilePath:     path,
				}
				if err := store.CreateDocument(ctx, doc); err != nil {
					return fmt.Errorf("failed to register %s: %w", md.Path, err)
				}
				known[path] = true
				added++
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Case %s saved, %d new documents pending", c.ID, added)))
			return nil
		},
	}
}

func caseShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <case>",
		Short: "Show case status and flagged transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flagged, _ := cmd.Flags().GetBool("flagged")

			settings, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			c, err := store.GetCase(ctx, args[0])
			if err != nil {
				return err
			}
			summary, err := store.GetCaseSummary(ctx, c.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderCaseSummary(c, summary))

			if !flagged {
				return nil
			}

			evals, err := store.ListRuleEvaluations(ctx, c.ID)
			if err != nil {
				return err
			}
			txns, err := store.ListTransactions(ctx, c.ID, service.TransactionFilter{CanonicalOnly: true})
			if err != nil {
				return err
			}
			byID := make(map[int64]model.Transaction, len(txns))
			for _, txn := range txns {
				byID[txn.ID] = txn
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderFlagged(evals, byID))
			return nil
		},
	}
	cmd.Flags().Bool("flagged", false, "list transactions with HIT or NEEDS_REVIEW decisions")
	return cmd
}

func caseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			cases, err := store.ListCases(ctx)
			if err != nil {
				return err
			}
			if len(cases) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No cases yet. Import one with: clawback case import <manifest.yaml>"))
				return nil
			}
			for _, c := range cases {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", cli.BoldStyle.Render(c.ID), c.CompanyName)
			}
			return nil
		},
	}
}
