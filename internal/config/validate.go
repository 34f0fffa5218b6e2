package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their YAML keys
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError represents a field-level validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors holds multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Error implements the error interface for ValidationErrors
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

func (v *ValidationErrors) add(field, message string) {
	v.Errors = append(v.Errors, ValidationError{Field: field, Message: message})
}

// Validate checks struct tags first, then the rules that span sections.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, e := range fieldErrs {
			field := fieldPath(e)
			errs.add(field, formatValidationMessage(field, e))
		}
	}

	if !c.Logging.IsLogLevelValid() {
		errs.add("logging.level", "logging.level must be one of: debug info warn error")
	}

	if c.Source.Kind == "ssh" {
		ssh := c.Source.SSH
		if ssh.Host == "" {
			errs.add("source.ssh.host", "source.ssh.host is required for the ssh source")
		}
		if ssh.Username == "" {
			errs.add("source.ssh.username", "source.ssh.username is required for the ssh source")
		}
		if ssh.Password == "" && ssh.PrivateKeyFile == "" {
			errs.add("source.ssh", "either source.ssh.password or source.ssh.private_key_file is required")
		}
		if ssh.Command == "" {
			errs.add("source.ssh.command", "source.ssh.command is required for the ssh source")
		}
	}
	if c.Source.Kind == "file" && (c.Source.Path == "" || c.Source.Path == "-") {
		errs.add("source.path", "source.path is required for the file source")
	}

	if c.Auth.JWTSecret != "" && c.Auth.AdminPassword == "" {
		errs.add("auth.admin_password", "auth.admin_password is required when auth.jwt_secret is set")
	}

	if len(errs.Errors) > 0 {
		return errs
	}
	return nil
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// formatValidationMessage creates human-readable error messages
func formatValidationMessage(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
