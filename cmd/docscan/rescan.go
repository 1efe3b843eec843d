package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docscan/internal/api"
	"github.com/jackzampolin/docscan/internal/rescan"
	"github.com/jackzampolin/docscan/internal/templateless"
)

var (
	rescanGroupsFile string
	rescanDocType    string
	rescanUseOCR     bool
)

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Regroup a document's pages and rescan them",
	Long: `Regroup a document's pages and rescan them.

Document types are given by name and resolved against the organization's
document types; an unknown name falls back to the default type.

Examples:
  docscan rescan whole 42 --type 請求書
  docscan rescan each-page 42 --type 領収書 --ocr
  docscan rescan custom 42 --groups groups.yaml`,
}

var rescanCustomCmd = &cobra.Command{
	Use:   "custom <document-id>",
	Short: "Rescan custom page ranges, each with its own document type",
	Long: `Rescan custom page ranges read from a YAML or JSON file:

  - {from: 1, to: 2, documentType: 請求書}
  - {from: 3, to: 5, documentType: 領収書, useOcr: true}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var groups []rescan.Group
		if err := api.ReadFile(rescanGroupsFile, &groups); err != nil {
			return err
		}
		return runRescan(cmd.Context(), args[0], func(ctx context.Context, r *rescan.Rescanner, doc *templateless.Document) error {
			return r.Custom(ctx, doc, groups)
		})
	},
}

var rescanEachPageCmd = &cobra.Command{
	Use:   "each-page <document-id>",
	Short: "Treat every page as its own group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRescan(cmd.Context(), args[0], func(ctx context.Context, r *rescan.Rescanner, doc *templateless.Document) error {
			return r.EachPage(ctx, doc, rescanDocType, rescanUseOCR)
		})
	},
}

var rescanWholeCmd = &cobra.Command{
	Use:   "whole <document-id>",
	Short: "Treat the whole PDF as one group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRescan(cmd.Context(), args[0], func(ctx context.Context, r *rescan.Rescanner, doc *templateless.Document) error {
			return r.Whole(ctx, doc, rescanDocType, rescanUseOCR)
		})
	},
}

func runRescan(ctx context.Context, documentID string, fn func(context.Context, *rescan.Rescanner, *templateless.Document) error) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	prompts, err := s.client.GetAllPrompts(ctx)
	if err != nil {
		return err
	}
	doc, err := s.client.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	r := rescan.New(rescan.Config{
		Client:      s.client,
		Prompts:     prompts,
		Concurrency: s.cfg.Rescan.Concurrency,
		Logger:      s.logger,
	})
	if err := s.reporter().Report(ctx, "rescanSuccess", "rescanFailure", fn(ctx, r, doc)); err != nil {
		return err
	}
	return api.Output(map[string]string{"rescanned": documentID})
}

func init() {
	rescanCustomCmd.Flags().StringVarP(&rescanGroupsFile, "groups", "g", "", "YAML or JSON file with the page ranges")
	rescanCustomCmd.MarkFlagRequired("groups")

	for _, c := range []*cobra.Command{rescanEachPageCmd, rescanWholeCmd} {
		c.Flags().StringVar(&rescanDocType, "type", "", "document type name")
		c.Flags().BoolVar(&rescanUseOCR, "ocr", false, "run OCR before extraction")
	}

	rescanCmd.AddCommand(rescanCustomCmd, rescanEachPageCmd, rescanWholeCmd)
	rootCmd.AddCommand(rescanCmd)
}
