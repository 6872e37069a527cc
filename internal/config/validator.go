package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aleister1102/oerscout/internal/models"
	"github.com/andybalholm/cascadia"
	"github.com/go-playground/validator/v10"
)

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	validate := newValidator()

	err := validate.Struct(cfg)
	if err == nil {
		if err := validateSeedNames(cfg.Seeds); err != nil {
			return err
		}
		if err := validateSeedSelectors(cfg.Seeds); err != nil {
			return err
		}
		return validateStoreSettings(cfg.StoreConfig)
	}

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		var validationErrorMessages []string
		for _, e := range errs {
			validationErrorMessages = append(validationErrorMessages, formatFieldError(e))
		}
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(validationErrorMessages, "\n  "))
	}
	return fmt.Errorf("configuration validation error: %w", err)
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// Register custom validation for LogLevel
	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		level := strings.ToLower(fl.Field().String())
		switch level {
		case "", "debug", "info", "warn", "error", "fatal", "panic":
			return true
		default:
			return false
		}
	})

	// Register custom validation for LogFormat
	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		format := strings.ToLower(fl.Field().String())
		switch format {
		case "", "console", "text", "json":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("sourcetype", func(fl validator.FieldLevel) bool {
		return models.SourceType(fl.Field().String()).IsValid()
	})

	_ = validate.RegisterValidation("storedriver", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "memory", "sqlite":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("querytemplate", func(fl validator.FieldLevel) bool {
		return strings.Contains(fl.Field().String(), "{query}")
	})

	return validate
}

func formatFieldError(e validator.FieldError) string {
	fieldName := e.Namespace()
	if idx := strings.Index(fieldName, "."); idx >= 0 {
		fieldName = fieldName[idx+1:]
	}
	msg := fmt.Sprintf("Validation failed for '%s': rule '%s'", fieldName, e.Tag())
	if e.Param() != "" {
		msg += fmt.Sprintf(" (expected: %s)", e.Param())
	}
	if e.Value() != nil && e.Value() != "" {
		msg += fmt.Sprintf(", actual: '%v'", e.Value())
	}
	return msg
}

func validateSeedNames(seeds []models.SeedConfig) error {
	seen := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		key := strings.ToLower(s.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("configuration validation failed:\n  duplicate seed name '%s'", s.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// validateSeedSelectors compiles every CSS selector found in seed configs: string
// values under "*_selector" keys and list items under "*_selectors" keys.
func validateSeedSelectors(seeds []models.SeedConfig) error {
	for _, s := range seeds {
		for key, raw := range s.Config {
			var selectors []string
			switch {
			case strings.HasSuffix(key, "_selector"):
				if v, ok := raw.(string); ok {
					selectors = append(selectors, v)
				}
			case strings.HasSuffix(key, "_selectors"):
				switch v := raw.(type) {
				case []interface{}:
					for _, item := range v {
						if str, ok := item.(string); ok {
							selectors = append(selectors, str)
						}
					}
				case []string:
					selectors = append(selectors, v...)
				}
			}
			for _, sel := range selectors {
				if strings.TrimSpace(sel) == "" {
					continue
				}
				if _, err := cascadia.ParseGroup(sel); err != nil {
					return fmt.Errorf("configuration validation failed:\n  seed '%s': invalid selector in %s: %v", s.Name, key, err)
				}
			}
		}
	}
	return nil
}

func validateStoreSettings(sc StoreConfig) error {
	if strings.EqualFold(sc.Driver, "sqlite") && strings.TrimSpace(sc.SQLitePath) == "" {
		return fmt.Errorf("configuration validation failed:\n  store_config.sqlite_path is required when driver is sqlite")
	}
	return nil
}
