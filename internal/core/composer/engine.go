package composer

import (
	"context"

	"github.com/skiffhq/skiff/internal/core/async"
	"github.com/skiffhq/skiff/internal/core/database"
	"github.com/skiffhq/skiff/internal/core/function"
	"github.com/skiffhq/skiff/internal/core/network"
	"github.com/skiffhq/skiff/internal/core/role"
	"github.com/skiffhq/skiff/internal/core/trigger"
)

// =============================================================================
// Engine Contract
// =============================================================================

// FunctionHandle is a created compute unit. The invocable reference
// resolves once the engine has realized the function.
type FunctionHandle struct {
	Spec *function.Spec

	// Ref resolves to the invocable function reference (ARN).
	Ref async.Value[string]
}

// Bucket is the created object storage bucket.
type Bucket struct {
	Name string

	// ID resolves to the bucket identifier.
	ID async.Value[string]
}

// Queue is the created async work queue.
type Queue struct {
	Name string

	// URL resolves to the queue reference URL.
	URL async.Value[string]
}

// Engine is the external provisioning engine contract. The composer only
// declares resources through it and never performs resource creation or
// diffing itself; engines decide whether a declared resource resolves
// immediately (offline planning) or after a cloud API call.
//
// Engines must treat a failed deferred input as a hard stop for the
// resource depending on it.
type Engine interface {
	CreateNetwork(ctx context.Context, spec network.Spec) (*network.Topology, error)

	CreateSecurityBoundary(ctx context.Context, spec network.BoundarySpec) (*network.Boundary, error)

	CreateDatabaseCluster(ctx context.Context, spec database.Spec) (*database.Cluster, error)

	// ResolveSecret looks the opaque secret reference up in the external
	// secret store and returns the deferred raw payload.
	ResolveSecret(ctx context.Context, ref async.Value[string]) async.Value[string]

	CreateBucket(ctx context.Context, name string) (*Bucket, error)

	CreateQueue(ctx context.Context, name string) (*Queue, error)

	// CreateRole realizes the frozen execution identity and returns its
	// deferred reference.
	CreateRole(ctx context.Context, r *role.Role) (async.Value[string], error)

	CreateFunction(ctx context.Context, spec *function.Spec) (*FunctionHandle, error)

	// CreateHTTPEndpoint exposes the web function and returns the deferred
	// public URL.
	CreateHTTPEndpoint(ctx context.Context, fn *FunctionHandle) (async.Value[string], error)

	// CreateSchedule realizes the trigger and returns its deferred
	// schedule identifier. Failures in the target, the role, or the
	// schedule creation itself fail the returned value.
	CreateSchedule(ctx context.Context, trg trigger.Trigger) (async.Value[string], error)
}
