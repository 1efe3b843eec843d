package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docscan/internal/api"
	"github.com/jackzampolin/docscan/internal/notify"
	"github.com/jackzampolin/docscan/internal/templateless"
	"github.com/jackzampolin/docscan/internal/upload"
)

var (
	docPromptID      string
	docDefinitionID  string
	docScanMode      string
	docConversion    string
	docExportFormat  string
	docExportOut     string
	docExportMeta    bool
	docUseOCR        bool
	docSearchFilters []string
	docSearchPage    int
	docSearchSize    int
)

// exportFormats maps --format names to export MIME types.
var exportFormats = map[string]string{
	"csv":      templateless.MimeCSV,
	"csv-zip":  templateless.MimeCSVGroup,
	"xlsx":     templateless.MimeExcel,
	"xlsx-zip": templateless.MimeExcelGroup,
	"json":     templateless.MimeJSON,
}

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Document commands",
}

var documentsGetCmd = &cobra.Command{
	Use:   "get <document-id>",
	Short: "Get a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		doc, err := s.client.GetDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return api.Output(doc)
	},
}

var documentsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search documents",
	Long: `Search documents, most recently updated first.

Filters are key=value pairs passed to the backend, e.g. --filter status=done.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters := map[string]string{}
		for _, f := range docSearchFilters {
			k, v, ok := strings.Cut(f, "=")
			if !ok {
				return fmt.Errorf("filter %q must be key=value", f)
			}
			filters[k] = v
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		res, err := s.client.SearchDocuments(cmd.Context(), filters, templateless.DefaultSorting, docSearchPage, docSearchSize)
		if err != nil {
			return err
		}
		return api.Output(res)
	},
}

var documentsUploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a PDF for scanning",
	Long: `Upload a PDF for scanning.

The file is checked locally first: it must open as a PDF and fit within
upload.max_file_size. LLM scans (the default) need --prompt-id; standard
scans need --definition-id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		opts := templateless.UploadOptions{
			ScanMode:            templateless.ScanMode(orDefault(docScanMode, s.cfg.Upload.ScanMode)),
			PdfConversionMethod: templateless.PdfConversionMethod(orDefault(docConversion, s.cfg.Upload.PdfConversionMethod)),
		}
		switch opts.ScanMode {
		case templateless.ScanModeStandard:
			if docDefinitionID == "" {
				return fmt.Errorf("--definition-id is required for standard scans")
			}
			opts.DefinitionOrPromptID = docDefinitionID
		case templateless.ScanModeLLM:
			if docPromptID == "" {
				return fmt.Errorf("--prompt-id is required for llm scans")
			}
			opts.DefinitionOrPromptID = docPromptID
		default:
			return fmt.Errorf("unknown scan mode %q", opts.ScanMode)
		}

		u := upload.New(upload.Config{
			Client:      s.client,
			MaxFileSize: s.cfg.Upload.MaxFileSize,
			Logger:      s.logger,
		})
		rep := s.reporter()
		rep.Info(cmd.Context(), "uploading", notify.Args{"fileName": filepath.Base(args[0])})
		doc, info, err := u.Upload(cmd.Context(), args[0], opts)
		if err := rep.Report(cmd.Context(), "uploadSuccess", "uploadFailure", err); err != nil {
			return err
		}
		return api.Output(map[string]any{
			"document": doc,
			"pages":    info.Pages,
			"size":     info.Size,
		})
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		err = s.client.DeleteDocument(cmd.Context(), args[0])
		if err := s.reporter().Report(cmd.Context(), "", "deleteFailure", err); err != nil {
			return err
		}
		return api.Output(map[string]string{"deleted": args[0]})
	},
}

var documentsExportCmd = &cobra.Command{
	Use:   "export <document-id>",
	Short: "Export a document's extracted data",
	Long: `Export a document as csv, xlsx or json. The csv-zip and xlsx-zip
formats export one file per page group in a zip archive.

The file is written to --out, or to ~/.docscan/exports by default.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, ok := exportFormats[docExportFormat]
		if !ok {
			return fmt.Errorf("unknown export format %q", docExportFormat)
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		rep := s.reporter()
		data, err := s.client.ExportDocument(cmd.Context(), args[0], format, docExportMeta)
		if err := rep.Report(cmd.Context(), "", "exportFailure", err); err != nil {
			return err
		}

		out := docExportOut
		if out == "" {
			h, err := getHome()
			if err != nil {
				return err
			}
			if err := h.EnsureExists(); err != nil {
				return err
			}
			out = h.ExportPath(args[0], templateless.FileExtensions[format])
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return rep.Report(cmd.Context(), "", "exportFailure", fmt.Errorf("failed to write export: %w", err))
		}
		return api.Output(map[string]any{"path": out, "bytes": len(data)})
	},
}

var documentsFeedbackCmd = &cobra.Command{
	Use:   "feedback <document-id> <text>",
	Short: "Send feedback about a document's scan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		err = s.client.SendFeedback(cmd.Context(), args[0], args[1])
		return s.reporter().Report(cmd.Context(), "feedbackSent", "feedbackFailed", err)
	},
}

var documentsScanCmd = &cobra.Command{
	Use:   "scan <document-id>",
	Short: "Start scanning an uploaded document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		return s.client.ScanDocument(cmd.Context(), args[0])
	},
}

var documentsRescanPageCmd = &cobra.Command{
	Use:   "rescan-page <document-id> <page-id>",
	Short: "Rescan a single page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		err = s.client.RescanDocumentPage(cmd.Context(), args[0], args[1], docUseOCR)
		return s.reporter().Report(cmd.Context(), "rescanSuccess", "rescanFailure", err)
	},
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func init() {
	documentsUploadCmd.Flags().StringVar(&docPromptID, "prompt-id", "", "document type (prompt) id for llm scans")
	documentsUploadCmd.Flags().StringVar(&docDefinitionID, "definition-id", "", "definition id for standard scans")
	documentsUploadCmd.Flags().StringVar(&docScanMode, "scan-mode", "", "llm or standard (default from config)")
	documentsUploadCmd.Flags().StringVar(&docConversion, "pdf-conversion", "", "standard or enhanced (default from config)")

	documentsExportCmd.Flags().StringVar(&docExportFormat, "format", "csv", "csv, csv-zip, xlsx, xlsx-zip or json")
	documentsExportCmd.Flags().StringVar(&docExportOut, "out", "", "output file")
	documentsExportCmd.Flags().BoolVar(&docExportMeta, "metadata", false, "include document metadata")

	documentsRescanPageCmd.Flags().BoolVar(&docUseOCR, "ocr", false, "run OCR before extraction")

	documentsSearchCmd.Flags().StringArrayVar(&docSearchFilters, "filter", nil, "key=value filter (repeatable)")
	documentsSearchCmd.Flags().IntVar(&docSearchPage, "page", 1, "result page, starting at 1")
	documentsSearchCmd.Flags().IntVar(&docSearchSize, "page-size", 50, "results per page")

	documentsCmd.AddCommand(
		documentsGetCmd,
		documentsSearchCmd,
		documentsUploadCmd,
		documentsDeleteCmd,
		documentsExportCmd,
		documentsFeedbackCmd,
		documentsScanCmd,
		documentsRescanPageCmd,
	)
	rootCmd.AddCommand(documentsCmd)
}
