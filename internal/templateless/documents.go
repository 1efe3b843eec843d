package templateless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Origin identifies this front-end to the backend on uploads.
const Origin = "asralpha"

// ScanMode selects how a document is scanned.
type ScanMode string

const (
	ScanModeLLM      ScanMode = "llm"
	ScanModeStandard ScanMode = "standard"
)

// PdfConversionMethod selects how PDF pages are rasterized.
type PdfConversionMethod string

const (
	PdfConversionStandard PdfConversionMethod = "standard"
	PdfConversionEnhanced PdfConversionMethod = "enhanced"
)

// Export formats accepted by ExportDocument.
const (
	MimeCSV        = "text/csv"
	MimeCSVGroup   = "text/csv,application/zip"
	MimeExcel      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeExcelGroup = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,application/zip"
	MimeJSON       = "application/json"
)

// FileExtensions maps export formats to file extensions.
var FileExtensions = map[string]string{
	MimeCSV:        "csv",
	MimeCSVGroup:   "zip",
	MimeExcel:      "xlsx",
	MimeExcelGroup: "zip",
	MimeJSON:       "json",
}

// Page is one page of a scanned document.
type Page struct {
	ID              string          `json:"id" yaml:"id"`
	PageNumber      int             `json:"pageNumber,omitempty" yaml:"pageNumber,omitempty"`
	CorrectedItems  json.RawMessage `json:"correctedItems,omitempty" yaml:"-"`
	CorrectedTables json.RawMessage `json:"correctedTables,omitempty" yaml:"-"`
}

// PageGroup is a set of pages scanned with one prompt.
type PageGroup struct {
	ID       string `json:"id" yaml:"id"`
	PromptID string `json:"promptId,omitempty" yaml:"promptId,omitempty"`
}

// Document is a scanned document as returned by the backend.
type Document struct {
	ID           string      `json:"id" yaml:"id"`
	Name         string      `json:"name" yaml:"name"`
	Status       string      `json:"status,omitempty" yaml:"status,omitempty"`
	DefinitionID string      `json:"definitionId,omitempty" yaml:"definitionId,omitempty"`
	Pages        []Page      `json:"pages,omitempty" yaml:"pages,omitempty"`
	PageGroups   []PageGroup `json:"pageGroups,omitempty" yaml:"pageGroups,omitempty"`
	CreatedAt    string      `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt    string      `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// PageCorrections is the body of a page correction save.
type PageCorrections struct {
	CorrectedFields json.RawMessage `json:"correctedFields"`
	CorrectedTables json.RawMessage `json:"correctedTables"`
}

// DocumentGroupItem assigns page ids (not page numbers) to a prompt.
type DocumentGroupItem struct {
	Pages    []int `json:"pages"`
	PromptID int   `json:"promptId"`
}

// UploadOptions configures UploadDocument.
type UploadOptions struct {
	ScanMode            ScanMode
	PdfConversionMethod PdfConversionMethod

	// DefinitionOrPromptID is a definition id for standard scans and a
	// prompt id for LLM scans.
	DefinitionOrPromptID string
}

func documentPath(documentID string) string {
	return "/documents/" + url.PathEscape(documentID)
}

// GetDocument fetches a document.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	var doc Document
	err := c.do(ctx, call{method: http.MethodGet, path: documentPath(documentID), entity: EntityDocument, id: documentID}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument deletes a document.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: documentPath(documentID), entity: EntityDocument, id: documentID}, nil)
}

// UpdateDocument patches document properties.
func (c *Client) UpdateDocument(ctx context.Context, documentID string, payload map[string]any) (*Document, error) {
	var doc Document
	err := c.do(ctx, call{method: http.MethodPatch, path: documentPath(documentID), body: payload, entity: EntityDocument, id: documentID}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// SavePageCorrections persists field and table corrections for one page.
func (c *Client) SavePageCorrections(ctx context.Context, documentID, documentPageID string, corrections PageCorrections) error {
	return c.do(ctx, call{
		method: http.MethodPatch,
		path:   pagePath(documentID, documentPageID) + "/correction",
		body:   corrections,
		entity: EntityDocument,
		id:     documentID,
	}, nil)
}

// SaveGroupCorrections persists corrections for a page group.
func (c *Client) SaveGroupCorrections(ctx context.Context, documentID, groupID string, payload any) error {
	return c.do(ctx, call{
		method: http.MethodPatch,
		path:   documentPath(documentID) + "/groups/" + url.PathEscape(groupID) + "/correction",
		body:   payload,
		entity: EntityDocument,
		id:     documentID,
	}, nil)
}

// ScanDocument starts a scan of an already processed document.
func (c *Client) ScanDocument(ctx context.Context, documentID string) error {
	return c.do(ctx, call{method: http.MethodPost, path: documentPath(documentID) + "/scan", body: struct{}{}, entity: EntityDocument, id: documentID}, nil)
}

// RescanDocument rescans every page group of a document.
func (c *Client) RescanDocument(ctx context.Context, documentID string, useOCR bool) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   documentPath(documentID) + "/rescan",
		body:   map[string]bool{"useOcr": useOCR},
		entity: EntityDocument,
		id:     documentID,
	}, nil)
}

// RescanDocumentPage rescans a single page.
func (c *Client) RescanDocumentPage(ctx context.Context, documentID, documentPageID string, useOCR bool) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   pagePath(documentID, documentPageID) + "/rescan",
		body:   map[string]bool{"useOcr": useOCR},
		entity: EntityDocument,
		id:     documentID,
	}, nil)
}

// RescanDocumentPageGroup rescans one page group, optionally with a new
// prompt. An empty promptID with useOCR false sends an empty body.
func (c *Client) RescanDocumentPageGroup(ctx context.Context, documentID, groupID string, promptID int, useOCR bool) error {
	body := map[string]any{}
	if promptID != 0 || useOCR {
		body["promptId"] = promptID
		body["useOcr"] = useOCR
	}
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   documentPath(documentID) + "/groups/" + url.PathEscape(groupID) + "/rescan",
		body:   body,
		entity: EntityDocument,
		id:     documentID,
	}, nil)
}

// GroupDocument replaces a document's page groups.
func (c *Client) GroupDocument(ctx context.Context, documentID string, groups []DocumentGroupItem) error {
	return c.do(ctx, call{
		method: http.MethodPatch,
		path:   documentPath(documentID) + "/groups",
		body:   map[string][]DocumentGroupItem{"groups": groups},
		entity: EntityDocument,
		id:     documentID,
	}, nil)
}

// SendFeedback attaches free-form feedback to a document.
func (c *Client) SendFeedback(ctx context.Context, documentID, feedback string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   documentPath(documentID) + "/feedback",
		body:   map[string]string{"feedback": feedback},
		entity: EntityDocument,
	}, nil)
}

// SearchDocuments returns one page of documents matching filters.
func (c *Client) SearchDocuments(ctx context.Context, filters map[string]string, sort Sorting, page, pageSize int) (*SearchResults[Document], error) {
	var res SearchResults[Document]
	q := searchQuery(filters, sort, page, pageSize)
	err := c.do(ctx, call{method: http.MethodGet, path: "/documents/search?" + q.Encode(), entity: EntityDocument}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadDocument uploads a PDF, converts its pages and scans it.
func (c *Client) UploadDocument(ctx context.Context, path string, opts UploadOptions) (*Document, error) {
	fields := map[string]string{
		"origin":              Origin,
		"pdfConversionMethod": string(PdfConversionStandard),
	}
	if opts.PdfConversionMethod != "" {
		fields["pdfConversionMethod"] = string(opts.PdfConversionMethod)
	}
	if opts.ScanMode == ScanModeStandard {
		fields["definitionId"] = opts.DefinitionOrPromptID
	} else {
		fields["scanMode"] = string(ScanModeLLM)
		fields["promptId"] = opts.DefinitionOrPromptID
	}

	var doc Document
	if err := c.postForm(ctx, "/documents", path, fields, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) postForm(ctx context.Context, apiPath, filePath string, fields map[string]string, result any) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPath, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setHeaders(req, "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, call{method: http.MethodPost, path: apiPath, entity: EntityDocument}, result)
}

// ExportDocument downloads a document export in the given format. Zip
// formats export per page group.
func (c *Client) ExportDocument(ctx context.Context, documentID, format string, includeMetadata bool) ([]byte, error) {
	if _, ok := FileExtensions[format]; !ok {
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}

	p := documentPath(documentID) + "/export"
	if strings.Contains(format, "application/zip") {
		p = documentPath(documentID) + "/groups/export"
	}
	p += fmt.Sprintf("?includeMetadata=%t", includeMetadata)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+p, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, format)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp, EntityDocument, documentID, ""); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	if format == MimeJSON {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode export: %w", err)
		}
		return json.MarshalIndent(v, "", "  ")
	}
	return data, nil
}
