// Package composer builds the deployment topology graph. It reads the
// feature flags once, conditionally instantiates the network, security
// boundary and managed database, merges function environments, builds the
// three compute units and the conditional scheduled triggers, and exposes
// the terminal outputs for the provisioning engine.
//
// The composer is a linear pipeline without backtracking: it either
// yields a complete, internally consistent deployment graph or no graph
// at all. Deferred cloud values flow bottom-up through async.Value
// chains; the composer expresses dependencies, it never resolves them
// eagerly.
package composer

import (
	"context"
	"fmt"

	"github.com/skiffhq/skiff/internal/core/database"
	"github.com/skiffhq/skiff/internal/core/flags"
	"github.com/skiffhq/skiff/internal/core/function"
	"github.com/skiffhq/skiff/internal/core/layers"
	"github.com/skiffhq/skiff/internal/core/network"
	"github.com/skiffhq/skiff/internal/core/role"
	"github.com/skiffhq/skiff/internal/core/trigger"
)

// =============================================================================
// Compute Unit Definitions
// =============================================================================

const (
	webTimeoutSeconds     = 28
	artisanTimeoutSeconds = 720
	workerTimeoutSeconds  = 120

	defaultMemoryMB = 1024
)

// =============================================================================
// Options
// =============================================================================

// Options carries composition inputs that are not feature flags.
type Options struct {
	// CodeRef references the packaged application artifact. Defaults to
	// "<prefix>/artifact.zip" when empty.
	CodeRef string
}

// =============================================================================
// Compose
// =============================================================================

// Compose builds the full deployment graph for the given flags using the
// provisioning engine. Any failure aborts composition and is returned as
// a single terminal error wrapping the originating cause; there is no
// local recovery or retry.
func Compose(ctx context.Context, f flags.FeatureFlags, eng Engine, opts Options) (*Deployment, error) {
	f = f.Normalized()
	prefix := f.ResourcePrefix()

	codeRef := opts.CodeRef
	if codeRef == "" {
		codeRef = prefix + "/artifact.zip"
	}

	d := &Deployment{Flags: f}

	// Step 1: network requirement is derived from the same flags that
	// enable the database, so a database can never exist without one.
	if f.NetworkRequired() {
		topo, err := eng.CreateNetwork(ctx, network.Spec{
			Name:        prefix,
			CIDR:        "10.0.0.0/16",
			SubnetCount: 2,
			Routing:     network.RoutingMixed,
		})
		if err != nil {
			return nil, fmt.Errorf("compose network: %w", err)
		}
		d.Network = topo
	}

	// Step 2: security boundary, cluster, then deferred credentials.
	if f.DatabaseEnabled() {
		boundary, err := eng.CreateSecurityBoundary(ctx, network.BoundarySpec{
			Name:    prefix + "-db",
			Network: d.Network,
		})
		if err != nil {
			return nil, fmt.Errorf("compose security boundary: %w", err)
		}
		d.Boundary = boundary

		cluster, err := eng.CreateDatabaseCluster(ctx, database.Spec{
			Name:         prefix,
			Engine:       "aurora-mysql",
			DatabaseName: databaseName(f.AppName),
			Network:      d.Network,
			Boundary:     boundary,
		})
		if err != nil {
			return nil, fmt.Errorf("compose database cluster: %w", err)
		}
		d.Database = cluster

		// Credentials resolve only after the cluster's secret exists and
		// the secret store lookup completes. A bad payload fails the
		// whole chain; credentials are never defaulted.
		payload := eng.ResolveSecret(ctx, cluster.SecretRef)
		d.Credentials = database.DeriveCredentials(payload)
	}

	bucket, err := eng.CreateBucket(ctx, prefix+"-storage")
	if err != nil {
		return nil, fmt.Errorf("compose storage bucket: %w", err)
	}
	d.Bucket = bucket

	queue, err := eng.CreateQueue(ctx, prefix+"-jobs")
	if err != nil {
		return nil, fmt.Errorf("compose work queue: %w", err)
	}
	d.Queue = queue

	// Step 3: shared execution role with baseline attachments. The role
	// accumulates attachments from here on and is frozen before the first
	// function build consumes it.
	r := role.New(prefix + "-exec")
	mustAttach(r, "storage-access", policyStorageAccess)
	mustAttach(r, "queue-access", policyQueueAccess)
	if d.Network != nil {
		mustAttach(r, "network-attachment", policyNetworkAttachment)
	}
	r.Freeze()
	d.Role = r

	roleRef, err := eng.CreateRole(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("compose execution role: %w", err)
	}
	d.RoleRef = roleRef

	// Step 4: merged environment mapping shared by every compute unit.
	baseEnv := baseEnvironment(f, d)

	// Step 5: the three compute units.
	factory := function.NewFactory(f.PHPVersion, f.Region)

	web, err := buildFunction(ctx, eng, factory, d, function.Inputs{
		Name:           prefix + "-web",
		CodeRef:        codeRef,
		RoleName:       r.Name(),
		Handler:        webHandler(f),
		Environment:    function.Merge(baseEnv, webOverrides(f)),
		LayerNames:     webLayers(f),
		TimeoutSeconds: webTimeoutSeconds,
		MemoryMB:       defaultMemoryMB,
	})
	if err != nil {
		return nil, fmt.Errorf("compose web function: %w", err)
	}
	d.Web = web

	artisan, err := buildFunction(ctx, eng, factory, d, function.Inputs{
		Name:           prefix + "-artisan",
		CodeRef:        codeRef,
		RoleName:       r.Name(),
		Handler:        "artisan",
		Environment:    function.Merge(baseEnv, function.Static(map[string]string{"APP_RUNNING_IN_CONSOLE": "true"})),
		LayerNames:     []string{string(layers.Runtime), string(layers.CLI)},
		TimeoutSeconds: artisanTimeoutSeconds,
		MemoryMB:       defaultMemoryMB,
	})
	if err != nil {
		return nil, fmt.Errorf("compose artisan function: %w", err)
	}
	d.Artisan = artisan

	worker, err := buildFunction(ctx, eng, factory, d, function.Inputs{
		Name:           prefix + "-worker",
		CodeRef:        codeRef,
		RoleName:       r.Name(),
		Handler:        "worker.php",
		Environment:    function.Merge(baseEnv, function.Static(map[string]string{"QUEUE_CONNECTION": "sqs"})),
		LayerNames:     []string{string(layers.Runtime)},
		TimeoutSeconds: workerTimeoutSeconds,
		MemoryMB:       defaultMemoryMB,
	})
	if err != nil {
		return nil, fmt.Errorf("compose worker function: %w", err)
	}
	d.Worker = worker

	endpoint, err := eng.CreateHTTPEndpoint(ctx, web)
	if err != nil {
		return nil, fmt.Errorf("compose http endpoint: %w", err)
	}
	d.Endpoint = endpoint

	// Step 6: conditional scheduled triggers. Each target reference is
	// the deferred function ref, carried as a dependency rather than
	// resolved here.
	if f.UseAPIWarmer {
		warm := trigger.Trigger{
			Name:     prefix + "-warmer",
			Rate:     f.APIWarmRate,
			Target:   web.Ref,
			RoleName: r.Name(),
			Payload:  `{"warmer": true}`,
		}
		ref, err := eng.CreateSchedule(ctx, warm)
		if err != nil {
			return nil, fmt.Errorf("compose warmer trigger: %w", err)
		}
		d.Triggers = append(d.Triggers, warm)
		d.ScheduleRefs = append(d.ScheduleRefs, ref)
	}

	if f.UseArtisanScheduler {
		sched := trigger.Trigger{
			Name:     prefix + "-scheduler",
			Rate:     f.ArtisanScheduleRate,
			Target:   artisan.Ref,
			RoleName: r.Name(),
			Payload:  `{"cli": "schedule:run"}`,
		}
		ref, err := eng.CreateSchedule(ctx, sched)
		if err != nil {
			return nil, fmt.Errorf("compose scheduler trigger: %w", err)
		}
		d.Triggers = append(d.Triggers, sched)
		d.ScheduleRefs = append(d.ScheduleRefs, ref)
	}

	d.Exports = buildExports(d)
	return d, nil
}

// buildFunction builds one function spec, attaching it to the network
// when a topology exists, and declares it through the engine.
func buildFunction(ctx context.Context, eng Engine, factory *function.Factory, d *Deployment, in function.Inputs) (*FunctionHandle, error) {
	if d.Network != nil {
		in.SubnetIDs = d.Network.SubnetIDs
		if d.Boundary != nil {
			in.SecurityGroupID = d.Boundary.ID
		}
	}

	spec, err := factory.Build(in)
	if err != nil {
		return nil, err
	}
	return eng.CreateFunction(ctx, spec)
}

// webHandler selects the web entrypoint: the long-running Octane runtime
// or classic FPM request handling.
func webHandler(f flags.FeatureFlags) string {
	if f.UseOctane {
		return "runtime/octane.php"
	}
	return "public/index.php"
}

// webLayers selects the web unit's layer set by runtime mode.
func webLayers(f flags.FeatureFlags) []string {
	if f.UseOctane {
		return []string{string(layers.Runtime)}
	}
	return []string{string(layers.FPMRuntime)}
}

func webOverrides(f flags.FeatureFlags) function.Env {
	if !f.UseOctane {
		return nil
	}
	return function.Static(map[string]string{"OCTANE_PERSIST_DATABASE_SESSIONS": "1"})
}

// databaseName derives the initial schema name from the app name,
// replacing characters the engine rejects.
func databaseName(appName string) string {
	out := make([]byte, 0, len(appName))
	for i := 0; i < len(appName); i++ {
		c := appName[i]
		if c == '-' || c == '.' {
			c = '_'
		}
		out = append(out, c)
	}
	return string(out)
}

// mustAttach attaches a baseline policy to a freshly created role.
// The only failure modes are programmer errors (empty name, frozen role),
// which cannot occur for the fixed baseline set.
func mustAttach(r *role.Role, name, policy string) {
	if err := r.Attach(name, policy); err != nil {
		panic(fmt.Sprintf("baseline policy attach %q: %v", name, err))
	}
}
