// Package library keeps saved prompt variations: snapshots of a card's
// prompt, criteria and model that can be loaded back into any card later.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/teilomillet/promptpilot/utils"
)

var ErrNotFound = errors.New("saved prompt not found")

// SavedPromptVariation is a library entry. It has its own ID space and no
// link to the card it was saved from.
type SavedPromptVariation struct {
	ID                 int       `json:"id" yaml:"id"`
	Prompt             string    `json:"prompt" yaml:"prompt"`
	EvaluationCriteria string    `json:"evaluationCriteria" yaml:"evaluationCriteria,omitempty"`
	Model              string    `json:"model" yaml:"model" validate:"required"`
	SavedAt            time.Time `json:"savedAt" yaml:"savedAt"`
}

// Title is the label shown in listings.
func (s SavedPromptVariation) Title() string {
	if strings.TrimSpace(s.Prompt) == "" {
		return "Untitled Prompt"
	}
	return s.Prompt
}

// Store persists saved variations. Save assigns an ID when v.ID is zero and
// returns the stored entry.
type Store interface {
	List(ctx context.Context) ([]SavedPromptVariation, error)
	Get(ctx context.Context, id int) (SavedPromptVariation, error)
	Save(ctx context.Context, v SavedPromptVariation) (SavedPromptVariation, error)
	Delete(ctx context.Context, id int) error
	Close() error
}

var validate = validator.New()

func prepare(v SavedPromptVariation, now time.Time) (SavedPromptVariation, error) {
	if err := validate.Struct(v); err != nil {
		return v, fmt.Errorf("invalid saved prompt: %w", err)
	}
	if v.SavedAt.IsZero() {
		v.SavedAt = now.UTC()
	}
	return v, nil
}

// Open builds the store described by spec: "memory", "sqlite:<path>" or
// "yaml:<path>".
func Open(spec string, logger utils.Logger) (Store, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	kind, path, _ := strings.Cut(spec, ":")
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if path == "" {
			return nil, fmt.Errorf("sqlite library needs a path")
		}
		return NewSQLiteStore(path)
	case "yaml":
		if path == "" {
			return nil, fmt.Errorf("yaml library needs a path")
		}
		return NewYAMLStore(path, logger)
	default:
		return nil, fmt.Errorf("unknown library backend: %s", kind)
	}
}
