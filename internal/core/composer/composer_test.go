package composer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiffhq/skiff/internal/core/async"
	"github.com/skiffhq/skiff/internal/core/database"
	"github.com/skiffhq/skiff/internal/core/flags"
	"github.com/skiffhq/skiff/internal/core/function"
	"github.com/skiffhq/skiff/internal/core/network"
	"github.com/skiffhq/skiff/internal/core/role"
	"github.com/skiffhq/skiff/internal/core/trigger"
)

// =============================================================================
// Fake Engine
// =============================================================================

// fakeEngine resolves every declared resource synchronously with
// deterministic identifiers and records what was declared.
type fakeEngine struct {
	secretPayload string

	networks   []network.Spec
	boundaries []network.BoundarySpec
	clusters   []database.Spec
	functions  []*function.Spec
	schedules  []trigger.Trigger
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{secretPayload: `{"username":"admin","password":"s3cret"}`}
}

func (e *fakeEngine) CreateNetwork(_ context.Context, spec network.Spec) (*network.Topology, error) {
	e.networks = append(e.networks, spec)
	return &network.Topology{
		ID:        async.Resolved("vpc-" + spec.Name),
		SubnetIDs: async.Resolved([]string{"subnet-a", "subnet-b"}),
		Routing:   spec.Routing,
	}, nil
}

func (e *fakeEngine) CreateSecurityBoundary(_ context.Context, spec network.BoundarySpec) (*network.Boundary, error) {
	e.boundaries = append(e.boundaries, spec)
	return &network.Boundary{
		ID:      async.Resolved("sg-" + spec.Name),
		Network: spec.Network,
	}, nil
}

func (e *fakeEngine) CreateDatabaseCluster(_ context.Context, spec database.Spec) (*database.Cluster, error) {
	e.clusters = append(e.clusters, spec)
	return &database.Cluster{
		Identifier: spec.Name,
		Endpoint:   async.Resolved(spec.Name + ".cluster.internal"),
		SecretRef:  async.Resolved("secret:" + spec.Name),
	}, nil
}

func (e *fakeEngine) ResolveSecret(_ context.Context, ref async.Value[string]) async.Value[string] {
	return async.Map(ref, func(string) string { return e.secretPayload })
}

func (e *fakeEngine) CreateBucket(_ context.Context, name string) (*Bucket, error) {
	return &Bucket{Name: name, ID: async.Resolved(name)}, nil
}

func (e *fakeEngine) CreateQueue(_ context.Context, name string) (*Queue, error) {
	return &Queue{Name: name, URL: async.Resolved("https://queue.test/" + name)}, nil
}

func (e *fakeEngine) CreateRole(_ context.Context, r *role.Role) (async.Value[string], error) {
	return async.Resolved("role:" + r.Name()), nil
}

func (e *fakeEngine) CreateFunction(_ context.Context, spec *function.Spec) (*FunctionHandle, error) {
	e.functions = append(e.functions, spec)
	return &FunctionHandle{Spec: spec, Ref: async.Resolved("fn:" + spec.Name)}, nil
}

func (e *fakeEngine) CreateHTTPEndpoint(_ context.Context, fn *FunctionHandle) (async.Value[string], error) {
	return async.Map(fn.Ref, func(ref string) string { return "https://" + fn.Spec.Name + ".example.test" }), nil
}

func (e *fakeEngine) CreateSchedule(_ context.Context, trg trigger.Trigger) (async.Value[string], error) {
	e.schedules = append(e.schedules, trg)
	return async.Resolved("schedule:" + trg.Name), nil
}

func testFlags(mutate func(*flags.FeatureFlags)) flags.FeatureFlags {
	f := flags.FeatureFlags{AppName: "shop", Environment: "prod"}
	if mutate != nil {
		mutate(&f)
	}
	return f
}

// =============================================================================
// Topology Conditions
// =============================================================================

func TestCompose_NetworkExistsIffRequired(t *testing.T) {
	tests := []struct {
		name     string
		useMySQL bool
		useVPC   bool
		want     bool
	}{
		{"neither flag", false, false, false},
		{"mysql implies network", true, false, true},
		{"vpc only", false, true, true},
		{"both", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newFakeEngine()
			d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
				f.UseMySQL = tt.useMySQL
				f.UseVPC = tt.useVPC
			}), eng, Options{})
			require.NoError(t, err)

			assert.Equal(t, tt.want, d.Network != nil)
			assert.Len(t, eng.networks, boolToInt(tt.want))
		})
	}
}

func TestCompose_DatabaseExistsIffMySQLAndNetwork(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseVPC = true
	}), eng, Options{})
	require.NoError(t, err)
	assert.Nil(t, d.Database)
	assert.Empty(t, eng.clusters)

	eng = newFakeEngine()
	d, err = Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseMySQL = true
	}), eng, Options{})
	require.NoError(t, err)
	require.NotNil(t, d.Database)
	require.NotNil(t, d.Network, "database must never exist without a network")
	require.Len(t, eng.boundaries, 1)
	assert.Same(t, d.Network, eng.boundaries[0].Network)
}

// =============================================================================
// Scenario A: no optional components
// =============================================================================

func TestCompose_ScenarioA_Minimal(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(nil), eng, Options{})
	require.NoError(t, err)
	require.NoError(t, d.Wait(context.Background()))

	assert.Nil(t, d.Network)
	assert.Nil(t, d.Database)
	assert.Empty(t, d.Triggers)

	// DB placeholders are deliberate empty strings, not missing keys.
	env := d.Web.Spec.Environment
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_DATABASE", "DB_USERNAME", "DB_PASSWORD"} {
		val, err := env[key].Await(context.Background())
		require.NoError(t, err, key)
		assert.Equal(t, "", val, key)
	}

	// Per-unit layer sets.
	require.Len(t, eng.functions, 3)
	web, artisan, worker := eng.functions[0], eng.functions[1], eng.functions[2]
	require.Len(t, web.Layers, 1)
	assert.Contains(t, web.Layers[0], "fpm")
	require.Len(t, artisan.Layers, 2)
	assert.Contains(t, artisan.Layers[0], "layer:php-")
	assert.Contains(t, artisan.Layers[1], "console")
	require.Len(t, worker.Layers, 1)
	assert.NotContains(t, worker.Layers[0], "fpm")

	exports, err := d.ResolveExports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", exports[ExportNetworkID])
	assert.Equal(t, "", exports[ExportDatabaseCluster])
	assert.Equal(t, "", exports[ExportDatabaseEndpoint])
	assert.Equal(t, "shop-prod-web", exports[ExportWebFunction])
	assert.Equal(t, "false", exports[ExportOctane])
}

// =============================================================================
// Scenario B: database enabled
// =============================================================================

func TestCompose_ScenarioB_Database(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseMySQL = true
	}), eng, Options{})
	require.NoError(t, err)
	require.NoError(t, d.Wait(context.Background()))

	require.NotNil(t, d.Network)
	require.NotNil(t, d.Boundary)
	require.NotNil(t, d.Database)

	env := d.Web.Spec.Environment
	host, err := env["DB_HOST"].Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shop-prod.cluster.internal", host)

	user, err := env["DB_USERNAME"].Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", user)

	pass, err := env["DB_PASSWORD"].Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pass)

	exports, err := d.ResolveExports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vpc-shop-prod", exports[ExportNetworkID])
	assert.Equal(t, "shop-prod", exports[ExportDatabaseCluster])
	assert.Equal(t, "shop-prod.cluster.internal", exports[ExportDatabaseEndpoint])
}

func TestCompose_CredentialsResolveonly_AfterSecret(t *testing.T) {
	// Engine whose secret reference resolves late: credentials must not be
	// available before it does.
	eng := newFakeEngine()
	secretRef, resolveRef, _ := async.New[string]()
	lateEngine := &lateSecretEngine{fakeEngine: eng, secretRef: secretRef}

	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseMySQL = true
	}), lateEngine, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Credentials.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	resolveRef("secret:shop-prod")
	creds, err := d.Credentials.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", creds.Username)
}

// lateSecretEngine defers the cluster secret reference until the test
// resolves it.
type lateSecretEngine struct {
	*fakeEngine
	secretRef async.Value[string]
}

func (e *lateSecretEngine) CreateDatabaseCluster(ctx context.Context, spec database.Spec) (*database.Cluster, error) {
	cluster, err := e.fakeEngine.CreateDatabaseCluster(ctx, spec)
	if err != nil {
		return nil, err
	}
	cluster.SecretRef = e.secretRef
	return cluster, nil
}

// =============================================================================
// Scenario C: scheduled triggers
// =============================================================================

func TestCompose_ScenarioC_Warmer(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseAPIWarmer = true
	}), eng, Options{})
	require.NoError(t, err)

	require.Len(t, d.Triggers, 1)
	assert.Equal(t, flags.DefaultAPIWarmRate, d.Triggers[0].Rate)
	assert.Equal(t, "shop-prod-exec", d.Triggers[0].RoleName)

	target, err := d.Triggers[0].Target.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fn:shop-prod-web", target)

	require.Len(t, d.ScheduleRefs, 1)
	ref, err := d.ScheduleRefs[0].Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "schedule:shop-prod-warmer", ref)
}

func TestCompose_ScenarioC_WarmerDisabled(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(nil), eng, Options{})
	require.NoError(t, err)
	assert.Empty(t, d.Triggers)
	assert.Empty(t, eng.schedules)
}

func TestCompose_ArtisanScheduler(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseArtisanScheduler = true
		f.ArtisanScheduleRate = "rate(10 minutes)"
	}), eng, Options{})
	require.NoError(t, err)

	require.Len(t, d.Triggers, 1)
	assert.Equal(t, "rate(10 minutes)", d.Triggers[0].Rate)
	assert.Equal(t, "shop-prod-exec", d.Triggers[0].RoleName)

	target, err := d.Triggers[0].Target.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fn:shop-prod-artisan", target)
}

// =============================================================================
// Scenario D: bad secret payload
// =============================================================================

func TestCompose_ScenarioD_EmptySecretFailsDeployment(t *testing.T) {
	eng := newFakeEngine()
	eng.secretPayload = ""

	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseMySQL = true
	}), eng, Options{})
	require.NoError(t, err)

	err = d.Wait(context.Background())
	assert.ErrorIs(t, err, database.ErrEmptySecret)

	_, err = d.Credentials.Await(context.Background())
	assert.ErrorIs(t, err, database.ErrEmptySecret)

	_, err = d.Web.Spec.Environment["DB_USERNAME"].Await(context.Background())
	assert.ErrorIs(t, err, database.ErrEmptySecret)
}

func TestCompose_MalformedSecretFailsDeployment(t *testing.T) {
	eng := newFakeEngine()
	eng.secretPayload = "{broken"

	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseMySQL = true
	}), eng, Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, d.Wait(context.Background()), database.ErrMalformedSecret)
}

// =============================================================================
// Failure Surfacing
// =============================================================================

// failedWorkerEngine hands the worker unit a reference that resolves to
// an error, the way a live engine surfaces a failed background creation.
type failedWorkerEngine struct {
	*fakeEngine
	err error
}

func (e *failedWorkerEngine) CreateFunction(ctx context.Context, spec *function.Spec) (*FunctionHandle, error) {
	if strings.HasSuffix(spec.Name, "-worker") {
		return &FunctionHandle{Spec: spec, Ref: async.Failed[string](e.err)}, nil
	}
	return e.fakeEngine.CreateFunction(ctx, spec)
}

func TestWait_FailedWorkerRefFailsDeployment(t *testing.T) {
	errCreate := errors.New("function creation rejected")
	eng := &failedWorkerEngine{fakeEngine: newFakeEngine(), err: errCreate}

	d, err := Compose(context.Background(), testFlags(nil), eng, Options{})
	require.NoError(t, err)

	err = d.Wait(context.Background())
	require.Error(t, err, "a failed function reference must fail the deployment")
	assert.ErrorIs(t, err, errCreate)
}

type failedScheduleEngine struct {
	*fakeEngine
	err error
}

func (e *failedScheduleEngine) CreateSchedule(_ context.Context, trg trigger.Trigger) (async.Value[string], error) {
	return async.Failed[string](e.err), nil
}

func TestWait_FailedScheduleFailsDeployment(t *testing.T) {
	errSched := errors.New("schedule creation rejected")
	eng := &failedScheduleEngine{fakeEngine: newFakeEngine(), err: errSched}

	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseAPIWarmer = true
	}), eng, Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, d.Wait(context.Background()), errSched)
}

// =============================================================================
// Role, Octane and Environment
// =============================================================================

func TestCompose_RoleBaselineAttachments(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(nil), eng, Options{})
	require.NoError(t, err)

	names := attachmentNames(d.Role)
	assert.Equal(t, []string{"storage-access", "queue-access"}, names)

	// Role is frozen once consumed by the function builds.
	assert.ErrorIs(t, d.Role.Attach("late", "{}"), role.ErrFrozen)
}

func TestCompose_RoleNetworkAttachmentWhenNetworked(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseVPC = true
	}), eng, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"storage-access", "queue-access", "network-attachment"}, attachmentNames(d.Role))
}

func TestCompose_OctaneSwitchesWebRuntime(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseOctane = true
	}), eng, Options{})
	require.NoError(t, err)

	assert.Equal(t, "runtime/octane.php", d.Web.Spec.Handler)
	require.Len(t, d.Web.Spec.Layers, 1)
	assert.NotContains(t, d.Web.Spec.Layers[0], "fpm")

	exports, err := d.ResolveExports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "true", exports[ExportOctane])
}

func TestCompose_FunctionsAttachToNetwork(t *testing.T) {
	eng := newFakeEngine()
	d, err := Compose(context.Background(), testFlags(func(f *flags.FeatureFlags) {
		f.UseMySQL = true
	}), eng, Options{})
	require.NoError(t, err)

	subnets, err := d.Worker.Spec.SubnetIDs.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"subnet-a", "subnet-b"}, subnets)

	sg, err := d.Worker.Spec.SecurityGroupID.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sg-shop-prod-db", sg)
}

func attachmentNames(r *role.Role) []string {
	attachments := r.Attachments()
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Name)
	}
	return names
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
