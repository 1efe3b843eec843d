// Package rescan regroups a scanned document's pages and rescans them.
//
// Three flows are supported: custom page ranges with a document type per
// range, each page as its own group, and the whole PDF as one group. Page
// ranges are given as page numbers; the backend groups by page id, so
// ranges are translated from the id of the first page in the range.
package rescan

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/docscan/internal/templateless"
)

// DefaultConcurrency bounds parallel group rescans.
const DefaultConcurrency = 5

// FallbackPromptID is used when a document type name does not resolve.
const FallbackPromptID = 1

// Client is the subset of the backend API rescans need.
type Client interface {
	GetDocument(ctx context.Context, documentID string) (*templateless.Document, error)
	GroupDocument(ctx context.Context, documentID string, groups []templateless.DocumentGroupItem) error
	RescanDocument(ctx context.Context, documentID string, useOCR bool) error
	RescanDocumentPageGroup(ctx context.Context, documentID, groupID string, promptID int, useOCR bool) error
}

// Group is one custom page range and the document type to scan it with.
type Group struct {
	From         int    `json:"from" yaml:"from"`
	To           int    `json:"to" yaml:"to"`
	DocumentType string `json:"documentType" yaml:"documentType"`
	UseOCR       bool   `json:"useOcr" yaml:"useOcr"`
}

// Config configures a Rescanner.
type Config struct {
	Client      Client
	Prompts     []templateless.Prompt
	Concurrency int
	Logger      *slog.Logger
}

// Rescanner runs grouped rescans against the backend.
type Rescanner struct {
	client      Client
	prompts     []templateless.Prompt
	concurrency int
	logger      *slog.Logger
}

// New creates a Rescanner.
func New(cfg Config) *Rescanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Rescanner{
		client:      cfg.Client,
		prompts:     cfg.Prompts,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// PromptID resolves a document type name to its prompt id, falling back to
// FallbackPromptID.
func (r *Rescanner) PromptID(name string) int {
	for _, p := range r.prompts {
		if p.Name != name {
			continue
		}
		if id, err := strconv.Atoi(p.ID); err == nil && id != 0 {
			return id
		}
	}
	return FallbackPromptID
}

// Custom groups doc's pages by the given ranges, then rescans every new
// group with its own prompt. Group rescans run concurrently; all of them
// are attempted and the first failure is returned.
func (r *Rescanner) Custom(ctx context.Context, doc *templateless.Document, groups []Group) error {
	if len(groups) == 0 {
		return fmt.Errorf("no groups given")
	}

	items := make([]templateless.DocumentGroupItem, 0, len(groups))
	for _, g := range groups {
		item, err := r.groupItem(doc, g)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	if err := r.client.GroupDocument(ctx, doc.ID, items); err != nil {
		return fmt.Errorf("failed to group document %s: %w", doc.ID, err)
	}

	grouped, err := r.client.GetDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to reload document %s: %w", doc.ID, err)
	}
	if len(grouped.PageGroups) < len(items) {
		return fmt.Errorf("document %s has %d page groups after grouping, expected %d",
			doc.ID, len(grouped.PageGroups), len(items))
	}

	var eg errgroup.Group
	eg.SetLimit(r.concurrency)
	for i, item := range items {
		groupID := grouped.PageGroups[i].ID
		useOCR := groups[i].UseOCR
		eg.Go(func() error {
			if err := r.client.RescanDocumentPageGroup(ctx, doc.ID, groupID, item.PromptID, useOCR); err != nil {
				r.logger.Warn("group rescan failed", "document_id", doc.ID, "group_id", groupID, "error", err)
				return fmt.Errorf("failed to rescan group %s: %w", groupID, err)
			}
			r.logger.Debug("group rescan started", "document_id", doc.ID, "group_id", groupID, "prompt_id", item.PromptID)
			return nil
		})
	}
	return eg.Wait()
}

// EachPage puts every page in its own group scanned with documentType,
// then rescans the document.
func (r *Rescanner) EachPage(ctx context.Context, doc *templateless.Document, documentType string, useOCR bool) error {
	promptID := r.PromptID(documentType)
	items := make([]templateless.DocumentGroupItem, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		id, err := pageID(p)
		if err != nil {
			return err
		}
		items = append(items, templateless.DocumentGroupItem{Pages: []int{id}, PromptID: promptID})
	}
	return r.regroupAndRescan(ctx, doc.ID, items, useOCR)
}

// Whole puts every page in a single group scanned with documentType, then
// rescans the document.
func (r *Rescanner) Whole(ctx context.Context, doc *templateless.Document, documentType string, useOCR bool) error {
	item := templateless.DocumentGroupItem{Pages: make([]int, 0, len(doc.Pages)), PromptID: r.PromptID(documentType)}
	for _, p := range doc.Pages {
		id, err := pageID(p)
		if err != nil {
			return err
		}
		item.Pages = append(item.Pages, id)
	}
	return r.regroupAndRescan(ctx, doc.ID, []templateless.DocumentGroupItem{item}, useOCR)
}

func (r *Rescanner) regroupAndRescan(ctx context.Context, documentID string, items []templateless.DocumentGroupItem, useOCR bool) error {
	if err := r.client.GroupDocument(ctx, documentID, items); err != nil {
		return fmt.Errorf("failed to group document %s: %w", documentID, err)
	}
	if err := r.client.RescanDocument(ctx, documentID, useOCR); err != nil {
		return fmt.Errorf("failed to rescan document %s: %w", documentID, err)
	}
	r.logger.Info("document regrouped", "document_id", documentID, "groups", len(items))
	return nil
}

// groupItem translates a page-number range into page ids counted from the
// id of the range's first page.
func (r *Rescanner) groupItem(doc *templateless.Document, g Group) (templateless.DocumentGroupItem, error) {
	if g.From < 1 || g.To < g.From {
		return templateless.DocumentGroupItem{}, fmt.Errorf("invalid page range %d-%d", g.From, g.To)
	}

	var start *templateless.Page
	for i := range doc.Pages {
		if doc.Pages[i].PageNumber == g.From {
			start = &doc.Pages[i]
			break
		}
	}
	if start == nil {
		return templateless.DocumentGroupItem{}, fmt.Errorf("page %d not found in document %s", g.From, doc.ID)
	}
	first, err := pageID(*start)
	if err != nil {
		return templateless.DocumentGroupItem{}, err
	}

	pages := make([]int, 0, g.To-g.From+1)
	for i := 0; i <= g.To-g.From; i++ {
		pages = append(pages, first+i)
	}
	return templateless.DocumentGroupItem{Pages: pages, PromptID: r.PromptID(g.DocumentType)}, nil
}

func pageID(p templateless.Page) (int, error) {
	id, err := strconv.Atoi(p.ID)
	if err != nil {
		return 0, fmt.Errorf("page %d has non-numeric id %q", p.PageNumber, p.ID)
	}
	return id, nil
}
