// Package registry maps the closed action vocabulary to factories and
// validates step params before any action is built.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/unearth4334/vast-api-sub001/pkg/models"
	"github.com/unearth4334/vast-api-sub001/pkg/protocol"
)

var (
	// ErrUnknownAction indicates a step names an action kind outside the
	// registered vocabulary. Surfaced at submission time, never at dispatch.
	ErrUnknownAction = errors.New("unknown action kind")

	// ErrInvalidParams indicates step params failed schema validation.
	ErrInvalidParams = errors.New("invalid action params")
)

type Registry struct {
	logger    *slog.Logger
	factories map[models.ActionKind]protocol.ActionFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[models.ActionKind]protocol.ActionFactory),
	}
}

func (r *Registry) Register(factory protocol.ActionFactory) {
	r.factories[factory.Kind()] = factory
	r.logger.Debug("Registered action factory", "kind", factory.Kind())
}

// Kinds returns the registered action kinds in stable order.
func (r *Registry) Kinds() []models.ActionKind {
	kinds := make([]models.ActionKind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}

// Validate checks that the kind is registered and the params satisfy the
// factory's schema. Called when a submission is parsed.
func (r *Registry) Validate(kind models.ActionKind, params json.RawMessage) error {
	factory, ok := r.factories[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, kind)
	}

	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(factory.Schema()),
		gojsonschema.NewBytesLoader(params),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidParams, kind, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%w: %s: %v", ErrInvalidParams, kind, details)
	}

	return nil
}

// Create validates params and builds the action.
func (r *Registry) Create(kind models.ActionKind, params json.RawMessage) (protocol.Action, error) {
	if err := r.Validate(kind, params); err != nil {
		return nil, err
	}

	return r.factories[kind].Create(params)
}

// IsUnknownAction checks if an error indicates an unregistered action kind.
func IsUnknownAction(err error) bool {
	return errors.Is(err, ErrUnknownAction)
}

// IsInvalidParams checks if an error indicates params failed validation.
func IsInvalidParams(err error) bool {
	return errors.Is(err, ErrInvalidParams)
}
