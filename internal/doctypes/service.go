package doctypes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/docscan/internal/templateless"
)

// Store is the backend prompt API.
type Store interface {
	GetAllPrompts(ctx context.Context) ([]templateless.Prompt, error)
	GetAllPresetPrompts(ctx context.Context) ([]templateless.Prompt, error)
	GetPrompt(ctx context.Context, id string) (*templateless.Prompt, error)
	GetCopyPreset(ctx context.Context, id string) (*templateless.Prompt, error)
	CreatePrompt(ctx context.Context, payload map[string]any) (*templateless.Prompt, error)
	UpdatePrompt(ctx context.Context, id string, payload map[string]any) (*templateless.Prompt, error)
	DeletePrompt(ctx context.Context, id string) error
}

// Service validates and persists document types.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// List returns every document type, or every shared preset.
func (s *Service) List(ctx context.Context, presets bool) ([]templateless.Prompt, error) {
	if presets {
		return s.store.GetAllPresetPrompts(ctx)
	}
	return s.store.GetAllPrompts(ctx)
}

// Get returns one document type.
func (s *Service) Get(ctx context.Context, id string) (*templateless.Prompt, error) {
	return s.store.GetPrompt(ctx, id)
}

// Create validates p and creates it.
func (s *Service) Create(ctx context.Context, p templateless.Prompt) (*templateless.Prompt, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	created, err := s.store.CreatePrompt(ctx, PreparePayload(p, false))
	if err != nil {
		return nil, fmt.Errorf("failed to create document type %q: %w", p.Name, err)
	}
	s.logger.Info("document type created", "id", created.ID, "name", created.Name)
	return created, nil
}

// Update validates p and replaces document type id with it.
func (s *Service) Update(ctx context.Context, id string, p templateless.Prompt) (*templateless.Prompt, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdatePrompt(ctx, id, PreparePayload(p, true))
	if err != nil {
		return nil, fmt.Errorf("failed to update document type %s: %w", id, err)
	}
	s.logger.Info("document type updated", "id", id)
	return updated, nil
}

// CreateFromPreset copies a shared preset into the organization under a
// new name.
func (s *Service) CreateFromPreset(ctx context.Context, presetID, name string) (*templateless.Prompt, error) {
	preset, err := s.store.GetCopyPreset(ctx, presetID)
	if err != nil {
		return nil, fmt.Errorf("failed to copy preset %s: %w", presetID, err)
	}
	if name != "" {
		preset.Name = name
	}
	return s.Create(ctx, *preset)
}

// Delete removes a document type.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeletePrompt(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document type %s: %w", id, err)
	}
	return nil
}

// FindByName returns the id of the document type named name, or "" when
// none matches.
func FindByName(prompts []templateless.Prompt, name string) string {
	for _, p := range prompts {
		if p.Name == name {
			return p.ID
		}
	}
	return ""
}
