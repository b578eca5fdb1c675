package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Trees) == 0 {
		return fmt.Errorf("trees: at least one tree must be configured")
	}
	if len(cfg.Storages) == 0 {
		return fmt.Errorf("storages: at least one storage must be configured")
	}

	trees := make(map[string]TreeConfig, len(cfg.Trees))
	for i, tree := range cfg.Trees {
		if _, exists := trees[tree.ID]; exists {
			return fmt.Errorf("trees[%d]: duplicate tree id %q", i, tree.ID)
		}
		trees[tree.ID] = tree
	}

	// Virtual trees must point at a configured real tree
	for i, tree := range cfg.Trees {
		if !tree.Virtual {
			continue
		}
		realTree, exists := trees[tree.RealTree]
		if !exists {
			return fmt.Errorf("trees[%d]: real tree %q not configured", i, tree.RealTree)
		}
		if realTree.Virtual {
			return fmt.Errorf("trees[%d]: tree %q is not a real tree", i, tree.RealTree)
		}
	}

	names := make(map[string]bool, len(cfg.Storages))
	for i, s := range cfg.Storages {
		if names[s.Name] {
			return fmt.Errorf("storages[%d]: duplicate storage name %q", i, s.Name)
		}
		names[s.Name] = true

		if len(s.Scope.TreeIDs) == 0 {
			return fmt.Errorf("storages[%d]: scope must list at least one tree", i)
		}
		for _, id := range s.Scope.TreeIDs {
			if _, exists := trees[id]; !exists {
				return fmt.Errorf("storages[%d]: tree %q not configured", i, id)
			}
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
