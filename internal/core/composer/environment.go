package composer

import (
	"github.com/skiffhq/skiff/internal/core/async"
	"github.com/skiffhq/skiff/internal/core/database"
	"github.com/skiffhq/skiff/internal/core/flags"
	"github.com/skiffhq/skiff/internal/core/function"
)

// =============================================================================
// Base Environment
// =============================================================================

// baseEnvironment builds the environment mapping shared by every compute
// unit: the application section, the storage/queue section, and the
// database section.
//
// When an optional component was not created its DB_* entries are
// pre-resolved empty strings. This is a deliberate placeholder policy for
// compatibility with existing consumers, not a silent failure: the branch
// below is the single place that decides it.
func baseEnvironment(f flags.FeatureFlags, d *Deployment) function.Env {
	env := function.Static(map[string]string{
		"APP_NAME": f.AppName,
		"APP_ENV":  f.Environment,
	})

	env["AWS_BUCKET"] = d.Bucket.ID
	env["QUEUE_URL"] = d.Queue.URL

	if d.Database == nil {
		env["DB_HOST"] = async.Resolved("")
		env["DB_PORT"] = async.Resolved("")
		env["DB_DATABASE"] = async.Resolved("")
		env["DB_USERNAME"] = async.Resolved("")
		env["DB_PASSWORD"] = async.Resolved("")
		return env
	}

	env["DB_HOST"] = d.Database.Endpoint
	env["DB_PORT"] = async.Resolved("3306")
	env["DB_DATABASE"] = async.Resolved(databaseName(f.AppName))
	env["DB_USERNAME"] = async.Map(d.Credentials, func(c database.Credentials) string { return c.Username })
	env["DB_PASSWORD"] = async.Map(d.Credentials, func(c database.Credentials) string { return c.Password })
	return env
}
