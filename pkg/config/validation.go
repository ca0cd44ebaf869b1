package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/tunecache/pkg/platform"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration.
//
// Validation runs in two passes:
//  1. Struct tags (go-playground/validator): required fields, enums, ranges
//  2. Cross-field rules tags cannot express: the resolved storage backend
//     has a path, badger is never configured in memory, metrics have a port
//
// Log levels are accepted in either case; ApplyDefaults normalizes them.
//
// Parameters:
//   - cfg: Configuration to validate, normally after ApplyDefaults
//
// Returns an error describing the first violation, or nil.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	backend, err := platform.Resolve(cfg.Storage.Type)
	if err != nil {
		return fmt.Errorf("storage.type: %w", err)
	}

	switch backend {
	case platform.Badger:
		if _, ok := cfg.Storage.Badger["in_memory"]; ok {
			return fmt.Errorf("storage.badger.in_memory: not supported, use storage.type=memory")
		}
		if isEmpty(cfg.Storage.Badger["path"]) {
			return fmt.Errorf("storage.badger.path: required")
		}
	case platform.Filesystem:
		if isEmpty(cfg.Storage.Filesystem["path"]) {
			return fmt.Errorf("storage.filesystem.path: required")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		return fmt.Errorf("metrics.port: required when metrics are enabled")
	}

	return nil
}

func isEmpty(v any) bool {
	s, ok := v.(string)
	return !ok || s == ""
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
