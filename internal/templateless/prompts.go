package templateless

import (
	"context"
	"net/http"
	"net/url"
)

// PromptItem is one field or table column a prompt extracts.
type PromptItem struct {
	ID          string  `json:"id,omitempty" yaml:"id,omitempty"`
	Item        string  `json:"item" yaml:"item"`
	Instruction *string `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	IsPreset    bool    `json:"isPreset,omitempty" yaml:"isPreset,omitempty"`
}

// Prompt is a document type definition: the prompt template the backend
// uses for LLM extraction.
type Prompt struct {
	ID                     string       `json:"id" yaml:"id"`
	Name                   string       `json:"name" yaml:"name"`
	NameJpn                *string      `json:"nameJpn,omitempty" yaml:"nameJpn,omitempty"`
	ShortName              *string      `json:"shortName,omitempty" yaml:"shortName,omitempty"`
	ShortNameJpn           *string      `json:"shortNameJpn,omitempty" yaml:"shortNameJpn,omitempty"`
	DocumentType           string       `json:"documentType" yaml:"documentType"`
	ExtractTable           bool         `json:"extractTable" yaml:"extractTable"`
	FieldsPrompt           []PromptItem `json:"fieldsPrompt,omitempty" yaml:"fieldsPrompt,omitempty"`
	TablePrompt            []PromptItem `json:"tablePrompt,omitempty" yaml:"tablePrompt,omitempty"`
	TextualTablePrompt     *string      `json:"textualTablePrompt,omitempty" yaml:"textualTablePrompt,omitempty"`
	SystemPrompt           *string      `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	UserCustomInstructions *string      `json:"userCustomInstructions,omitempty" yaml:"userCustomInstructions,omitempty"`
	CreatedBy              *string      `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt              string       `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt              string       `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

func promptPath(id string) string {
	return "/prompts/" + url.PathEscape(id)
}

// SearchPrompts returns one page of prompts matching filters. Set
// filters["useShared"] = "true" to search presets.
func (c *Client) SearchPrompts(ctx context.Context, filters map[string]string, sort Sorting, page, pageSize int) (*SearchResults[Prompt], error) {
	var res SearchResults[Prompt]
	q := searchQuery(filters, sort, page, pageSize)
	err := c.do(ctx, call{method: http.MethodGet, path: "/prompts/search?" + q.Encode(), entity: EntityPrompt}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetAllPrompts returns every prompt of the organization.
func (c *Client) GetAllPrompts(ctx context.Context) ([]Prompt, error) {
	return IterateSearchPages(ctx, func(ctx context.Context, page, pageSize int) (*SearchResults[Prompt], error) {
		return c.SearchPrompts(ctx, nil, Sorting{}, page, pageSize)
	}, SearchPageSize)
}

// GetAllPresetPrompts returns every shared preset prompt.
func (c *Client) GetAllPresetPrompts(ctx context.Context) ([]Prompt, error) {
	return IterateSearchPages(ctx, func(ctx context.Context, page, pageSize int) (*SearchResults[Prompt], error) {
		return c.SearchPrompts(ctx, map[string]string{"useShared": "true"}, Sorting{}, page, pageSize)
	}, SearchPageSize)
}

// GetPrompt fetches a prompt by id.
func (c *Client) GetPrompt(ctx context.Context, id string) (*Prompt, error) {
	var p Prompt
	if err := c.do(ctx, call{method: http.MethodGet, path: promptPath(id), entity: EntityPrompt, id: id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetCopyPreset returns an editable copy of a preset prompt.
func (c *Client) GetCopyPreset(ctx context.Context, id string) (*Prompt, error) {
	var p Prompt
	if err := c.do(ctx, call{method: http.MethodGet, path: promptPath(id) + "/copyPreset", entity: EntityPrompt, id: id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePrompt creates a prompt from a prepared payload.
func (c *Client) CreatePrompt(ctx context.Context, payload map[string]any) (*Prompt, error) {
	var p Prompt
	if err := c.do(ctx, call{method: http.MethodPost, path: "/prompts/", body: payload, entity: EntityPrompt}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePrompt patches a prompt with a prepared payload.
func (c *Client) UpdatePrompt(ctx context.Context, id string, payload map[string]any) (*Prompt, error) {
	var p Prompt
	if err := c.do(ctx, call{method: http.MethodPatch, path: promptPath(id), body: payload, entity: EntityPrompt, id: id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePrompt deletes a prompt.
func (c *Client) DeletePrompt(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: promptPath(id), entity: EntityPrompt, id: id}, nil)
}
