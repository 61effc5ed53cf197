package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAppName_Valid(t *testing.T) {
	for _, name := range []string{"app", "my-app", "a", "app42", "long-but-reasonable-app-name"} {
		assert.Empty(t, ValidateAppName(name), "expected %q to be valid", name)
	}
}

func TestValidateAppName_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"uppercase":      "MyApp",
		"leading digit":  "1app",
		"leading hyphen": "-app",
		"trailing":       "app-",
		"underscore":     "my_app",
		"too long":       "this-application-name-is-far-too-long-to-use",
	}
	for label, name := range cases {
		assert.NotEmpty(t, ValidateAppName(name), "expected %s (%q) to be rejected", label, name)
	}
}

func TestValidateEnvironment(t *testing.T) {
	assert.Empty(t, ValidateEnvironment(""), "empty environment falls back to the default")
	assert.Empty(t, ValidateEnvironment("production"))
	assert.Empty(t, ValidateEnvironment("staging"))
	assert.NotEmpty(t, ValidateEnvironment("Production"))
	assert.NotEmpty(t, ValidateEnvironment("really-long-environment"))
}

func TestValidateRateExpression_Valid(t *testing.T) {
	for _, expr := range []string{"", "rate(1 minute)", "rate(5 minutes)", "rate(1 hour)", "rate(2 days)"} {
		assert.Empty(t, ValidateRateExpression(expr), "expected %q to be valid", expr)
	}
}

func TestValidateRateExpression_Invalid(t *testing.T) {
	for _, expr := range []string{"rate(0 minutes)", "rate(5)", "every 5 minutes", "rate(5 min)", "cron(0 * * * *)"} {
		assert.NotEmpty(t, ValidateRateExpression(expr), "expected %q to be rejected", expr)
	}
}
