// Package trigger models time-based invocations of deployed functions.
package trigger

import "github.com/skiffhq/skiff/internal/core/async"

// Trigger is a scheduled invocation of a target function. The target
// reference is deferred: it is only valid once the provisioning engine has
// realized the function, so the trigger carries the dependency instead of
// resolving it eagerly.
type Trigger struct {
	// Name identifies the schedule resource.
	Name string

	// Rate is the schedule rate expression, e.g. "rate(5 minutes)".
	Rate string

	// Target resolves to the invocable reference of the target function.
	Target async.Value[string]

	// RoleName names the execution role the scheduler assumes when
	// invoking the target.
	RoleName string

	// Payload is the invocation payload delivered to the target.
	Payload string
}
