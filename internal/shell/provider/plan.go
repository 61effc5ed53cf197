package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skiffhq/skiff/internal/core/async"
	"github.com/skiffhq/skiff/internal/core/composer"
	"github.com/skiffhq/skiff/internal/core/database"
	"github.com/skiffhq/skiff/internal/core/function"
	"github.com/skiffhq/skiff/internal/core/network"
	"github.com/skiffhq/skiff/internal/core/role"
	"github.com/skiffhq/skiff/internal/core/trigger"
)

// planPasswordPlaceholder stands in for the generated master password,
// which only exists after a live deployment.
const planPasswordPlaceholder = "(resolved after deploy)"

// PlanEngine is the offline provisioning engine. It resolves every
// declared resource synchronously with deterministic placeholder
// identifiers, letting operators preview the full topology - including
// which subsystems the flags enable - without touching a cloud account.
type PlanEngine struct {
	logger *slog.Logger
}

// NewPlanEngine creates an offline planning engine.
func NewPlanEngine(logger *slog.Logger) *PlanEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanEngine{logger: logger.With("engine", "plan")}
}

func (e *PlanEngine) CreateNetwork(_ context.Context, spec network.Spec) (*network.Topology, error) {
	e.logger.Info("planning network", "name", spec.Name, "cidr", spec.CIDR, "subnets", spec.SubnetCount)

	subnets := make([]string, 0, spec.SubnetCount)
	for i := 0; i < spec.SubnetCount; i++ {
		subnets = append(subnets, fmt.Sprintf("subnet-%s-%d", spec.Name, i))
	}

	return &network.Topology{
		ID:        async.Resolved("vpc-" + spec.Name),
		SubnetIDs: async.Resolved(subnets),
		Routing:   spec.Routing,
	}, nil
}

func (e *PlanEngine) CreateSecurityBoundary(_ context.Context, spec network.BoundarySpec) (*network.Boundary, error) {
	e.logger.Info("planning security boundary", "name", spec.Name)
	return &network.Boundary{
		ID:      async.Resolved("sg-" + spec.Name),
		Network: spec.Network,
	}, nil
}

func (e *PlanEngine) CreateDatabaseCluster(_ context.Context, spec database.Spec) (*database.Cluster, error) {
	e.logger.Info("planning database cluster", "name", spec.Name, "engine", spec.Engine)
	return &database.Cluster{
		Identifier: spec.Name,
		Endpoint:   async.Resolved(spec.Name + ".cluster.plan.internal"),
		SecretRef:  async.Resolved("secret:" + spec.Name),
	}, nil
}

func (e *PlanEngine) ResolveSecret(_ context.Context, ref async.Value[string]) async.Value[string] {
	// The real payload does not exist yet; preview with the conventional
	// master username and a password placeholder.
	return async.Map(ref, func(string) string {
		return `{"username":"admin","password":"` + planPasswordPlaceholder + `"}`
	})
}

func (e *PlanEngine) CreateBucket(_ context.Context, name string) (*composer.Bucket, error) {
	e.logger.Info("planning bucket", "name", name)
	return &composer.Bucket{Name: name, ID: async.Resolved(name)}, nil
}

func (e *PlanEngine) CreateQueue(_ context.Context, name string) (*composer.Queue, error) {
	e.logger.Info("planning queue", "name", name)
	return &composer.Queue{Name: name, URL: async.Resolved("https://sqs.plan.internal/" + name)}, nil
}

func (e *PlanEngine) CreateRole(_ context.Context, r *role.Role) (async.Value[string], error) {
	e.logger.Info("planning role", "name", r.Name(), "attachments", len(r.Attachments()))
	return async.Resolved("arn:aws:iam::000000000000:role/" + r.Name()), nil
}

func (e *PlanEngine) CreateFunction(_ context.Context, spec *function.Spec) (*composer.FunctionHandle, error) {
	e.logger.Info("planning function",
		"name", spec.Name,
		"handler", spec.Handler,
		"layers", len(spec.Layers),
	)
	return &composer.FunctionHandle{
		Spec: spec,
		Ref:  async.Resolved("arn:aws:lambda:plan:000000000000:function:" + spec.Name),
	}, nil
}

func (e *PlanEngine) CreateHTTPEndpoint(_ context.Context, fn *composer.FunctionHandle) (async.Value[string], error) {
	e.logger.Info("planning http endpoint", "function", fn.Spec.Name)
	return async.Resolved("https://" + fn.Spec.Name + ".plan.internal"), nil
}

func (e *PlanEngine) CreateSchedule(_ context.Context, trg trigger.Trigger) (async.Value[string], error) {
	e.logger.Info("planning schedule", "name", trg.Name, "rate", trg.Rate)
	return async.Resolved(trg.Name), nil
}
