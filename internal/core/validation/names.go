package validation

import (
	"regexp"
	"strings"
)

// =============================================================================
// Name Validation
// =============================================================================

// namePattern matches cloud-safe resource name components: lowercase
// letters, digits, hyphens, starting with a letter, no trailing hyphen.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// MaxAppNameLength bounds the application name so that derived resource
// names (prefix plus the longest component suffix) stay inside provider
// identifier limits.
const MaxAppNameLength = 32

// MaxEnvironmentLength bounds the environment name component.
const MaxEnvironmentLength = 16

// ValidateAppName checks an application name for use as a resource name
// prefix. Returns an empty string when the name is valid, otherwise a
// human-readable reason.
func ValidateAppName(name string) string {
	if name == "" {
		return "app name is required"
	}
	if len(name) > MaxAppNameLength {
		return "app name must be at most 32 characters"
	}
	if !namePattern.MatchString(name) {
		return "app name must contain only lowercase letters, digits and hyphens, and start with a letter"
	}
	return ""
}

// ValidateEnvironment checks an environment name component.
func ValidateEnvironment(env string) string {
	if env == "" {
		return ""
	}
	if len(env) > MaxEnvironmentLength {
		return "environment must be at most 16 characters"
	}
	if !namePattern.MatchString(env) {
		return "environment must contain only lowercase letters, digits and hyphens, and start with a letter"
	}
	return ""
}

// =============================================================================
// Rate Expression Validation
// =============================================================================

// ratePattern matches scheduler rate expressions such as "rate(5 minutes)"
// or "rate(1 minute)".
var ratePattern = regexp.MustCompile(`^rate\([1-9][0-9]*\s+(minute|minutes|hour|hours|day|days)\)$`)

// ValidateRateExpression checks a scheduler rate expression. Empty input
// is valid; composition substitutes the default rate.
func ValidateRateExpression(expr string) string {
	if expr == "" {
		return ""
	}
	if !ratePattern.MatchString(strings.TrimSpace(expr)) {
		return "rate expression must have the form rate(N minutes|hours|days)"
	}
	return ""
}
