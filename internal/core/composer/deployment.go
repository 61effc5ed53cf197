package composer

import (
	"context"
	"fmt"
	"sort"

	"github.com/skiffhq/skiff/internal/core/async"
	"github.com/skiffhq/skiff/internal/core/database"
	"github.com/skiffhq/skiff/internal/core/flags"
	"github.com/skiffhq/skiff/internal/core/function"
	"github.com/skiffhq/skiff/internal/core/network"
	"github.com/skiffhq/skiff/internal/core/role"
	"github.com/skiffhq/skiff/internal/core/trigger"
)

// =============================================================================
// Deployment
// =============================================================================

// Deployment is the composed topology graph, the composer's terminal
// output. Optional components are nil when their feature flags were off;
// the Exports map preserves the empty-string placeholder convention for
// consumers (see buildExports).
type Deployment struct {
	Flags flags.FeatureFlags

	// Network and Boundary are nil unless network isolation was required.
	Network  *network.Topology
	Boundary *network.Boundary

	// Database is nil unless the managed database flag was set.
	// Credentials is only usable when Database is non-nil.
	Database    *database.Cluster
	Credentials async.Value[database.Credentials]

	Role    *role.Role
	RoleRef async.Value[string]

	Bucket *Bucket
	Queue  *Queue

	Web     *FunctionHandle
	Artisan *FunctionHandle
	Worker  *FunctionHandle

	// Endpoint resolves to the public URL of the web function.
	Endpoint async.Value[string]

	Triggers []trigger.Trigger

	// ScheduleRefs resolve once the engine has realized each trigger,
	// in Triggers order.
	ScheduleRefs []async.Value[string]

	// Exports is the flat mapping of named values intended for external
	// export.
	Exports map[string]async.Value[string]
}

// Wait awaits every deferred value the graph carries - the security
// boundary, the function environments and refs, the trigger targets and
// schedules, then the exports - and returns the first failure, wrapping
// the originating cause. Consumers treat any failure as a hard stop: a
// deployment graph with a poisoned value has no safe partial-apply
// semantics.
func (d *Deployment) Wait(ctx context.Context) error {
	if d.Boundary != nil {
		if _, err := d.Boundary.ID.Await(ctx); err != nil {
			return fmt.Errorf("security boundary: %w", err)
		}
	}
	for _, fn := range []*FunctionHandle{d.Web, d.Artisan, d.Worker} {
		if fn == nil {
			continue
		}
		for _, key := range sortedEnvKeys(fn.Spec.Environment) {
			if _, err := fn.Spec.Environment[key].Await(ctx); err != nil {
				return fmt.Errorf("function %q environment %q: %w", fn.Spec.Name, key, err)
			}
		}
		if _, err := fn.Ref.Await(ctx); err != nil {
			return fmt.Errorf("function %q: %w", fn.Spec.Name, err)
		}
	}
	for i, trg := range d.Triggers {
		if _, err := trg.Target.Await(ctx); err != nil {
			return fmt.Errorf("trigger %q target: %w", trg.Name, err)
		}
		if _, err := d.ScheduleRefs[i].Await(ctx); err != nil {
			return fmt.Errorf("trigger %q schedule: %w", trg.Name, err)
		}
	}
	for _, key := range sortedExportKeys(d.Exports) {
		if _, err := d.Exports[key].Await(ctx); err != nil {
			return fmt.Errorf("deployment value %q: %w", key, err)
		}
	}
	return nil
}

// ResolveExports awaits every export and returns the flat resolved map.
func (d *Deployment) ResolveExports(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(d.Exports))
	for _, key := range sortedExportKeys(d.Exports) {
		val, err := d.Exports[key].Await(ctx)
		if err != nil {
			return nil, fmt.Errorf("deployment value %q: %w", key, err)
		}
		out[key] = val
	}
	return out, nil
}

func sortedEnvKeys(env function.Env) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedExportKeys(exports map[string]async.Value[string]) []string {
	keys := make([]string, 0, len(exports))
	for k := range exports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
