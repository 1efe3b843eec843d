package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docscan/internal/api"
	"github.com/jackzampolin/docscan/internal/notify"
	"github.com/jackzampolin/docscan/internal/rowdetect"
	"github.com/jackzampolin/docscan/internal/templateless"
)

var correctionsFile string

var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Page correction commands",
}

var correctionsSaveCmd = &cobra.Command{
	Use:   "save <document-id>",
	Short: "Save corrected fields and tables for a document's pages",
	Long: `Save page corrections read from a YAML or JSON list of pages:

  - id: "88"
    correctedItems: [...]
    correctedTables: [...]

Pages are saved in order and saving stops at the first failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pages []templateless.Page
		if err := api.ReadFile(correctionsFile, &pages); err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		coord, rec := s.coordinator()
		res := coord.SaveCorrections(cmd.Context(), args[0], pages)

		if err := api.Output(struct {
			rowdetect.SaveResult
			Notifications []notify.Notification `json:"notifications,omitempty"`
		}{res, rec.All()}); err != nil {
			return err
		}
		if !res.OK {
			return fmt.Errorf("saved %d of %d pages", res.Saved, len(pages))
		}
		return nil
	},
}

func init() {
	correctionsSaveCmd.Flags().StringVarP(&correctionsFile, "file", "f", "", "YAML or JSON file with the corrected pages")
	correctionsSaveCmd.MarkFlagRequired("file")

	correctionsCmd.AddCommand(correctionsSaveCmd)
	rootCmd.AddCommand(correctionsCmd)
}
