package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docscan/internal/api"
	"github.com/jackzampolin/docscan/internal/doctypes"
	"github.com/jackzampolin/docscan/internal/templateless"
)

var (
	doctypeFile    string
	doctypePresets bool
	doctypeName    string
)

var doctypesCmd = &cobra.Command{
	Use:   "doctypes",
	Short: "Manage document types (prompt templates)",
	Long: `Manage document types: the prompt templates that tell the scanner
which fields and tables to extract.

Create and update read a YAML or JSON document type:

  name: 支払通知書
  documentType: 支払通知書
  extractTable: true
  fieldsPrompt:
    - {item: タイトル}
    - {item: 税込価格, instruction: "with tax"}
  tablePrompt:
    - {item: 楽曲}`,
}

func newDoctypeService() (*doctypes.Service, error) {
	s, err := newSession()
	if err != nil {
		return nil, err
	}
	return doctypes.NewService(s.client, s.logger), nil
}

func readDoctype() (templateless.Prompt, error) {
	var p templateless.Prompt
	err := api.ReadFile(doctypeFile, &p)
	return p, err
}

var doctypesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List document types",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDoctypeService()
		if err != nil {
			return err
		}
		prompts, err := svc.List(cmd.Context(), doctypePresets)
		if err != nil {
			return err
		}
		return api.Output(prompts)
	},
}

var doctypesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a document type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDoctypeService()
		if err != nil {
			return err
		}
		p, err := svc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return api.Output(p)
	},
}

var doctypesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a document type file and show the payload that would be sent",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := readDoctype()
		if err != nil {
			return err
		}
		if err := doctypes.Validate(p); err != nil {
			return err
		}
		return api.Output(doctypes.PreparePayload(p, false))
	},
}

var doctypesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a document type",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := readDoctype()
		if err != nil {
			return err
		}
		svc, err := newDoctypeService()
		if err != nil {
			return err
		}
		created, err := svc.Create(cmd.Context(), p)
		if err != nil {
			return err
		}
		return api.Output(created)
	},
}

var doctypesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a document type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := readDoctype()
		if err != nil {
			return err
		}
		svc, err := newDoctypeService()
		if err != nil {
			return err
		}
		updated, err := svc.Update(cmd.Context(), args[0], p)
		if err != nil {
			return err
		}
		return api.Output(updated)
	},
}

var doctypesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDoctypeService()
		if err != nil {
			return err
		}
		if err := svc.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		return api.Output(map[string]string{"deleted": args[0]})
	},
}

var doctypesCopyPresetCmd = &cobra.Command{
	Use:   "copy-preset <preset-id>",
	Short: "Copy a shared preset into your organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDoctypeService()
		if err != nil {
			return err
		}
		created, err := svc.CreateFromPreset(cmd.Context(), args[0], doctypeName)
		if err != nil {
			return err
		}
		return api.Output(created)
	},
}

var doctypesFindCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Print the id of the document type with this name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDoctypeService()
		if err != nil {
			return err
		}
		prompts, err := svc.List(cmd.Context(), false)
		if err != nil {
			return err
		}
		id := doctypes.FindByName(prompts, args[0])
		if id == "" {
			return fmt.Errorf("no document type named %q", args[0])
		}
		return api.Output(map[string]string{"id": id, "name": args[0]})
	},
}

func init() {
	for _, c := range []*cobra.Command{doctypesValidateCmd, doctypesCreateCmd, doctypesUpdateCmd} {
		c.Flags().StringVarP(&doctypeFile, "file", "f", "", "YAML or JSON document type")
		c.MarkFlagRequired("file")
	}
	doctypesListCmd.Flags().BoolVar(&doctypePresets, "presets", false, "list shared presets instead")
	doctypesCopyPresetCmd.Flags().StringVar(&doctypeName, "name", "", "name for the copy")

	doctypesCmd.AddCommand(
		doctypesListCmd,
		doctypesGetCmd,
		doctypesFindCmd,
		doctypesValidateCmd,
		doctypesCreateCmd,
		doctypesUpdateCmd,
		doctypesDeleteCmd,
		doctypesCopyPresetCmd,
	)
	rootCmd.AddCommand(doctypesCmd)
}
