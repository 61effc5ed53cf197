// Package flags defines the immutable deployment options driving
// conditional topology composition. This is part of the Functional Core.
package flags

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultAPIWarmRate is the keep-warm ping rate for the web function.
	DefaultAPIWarmRate = "rate(5 minutes)"

	// DefaultArtisanScheduleRate is the rate of the scheduled console runner.
	DefaultArtisanScheduleRate = "rate(1 minute)"

	// DefaultPHPVersion is the platform runtime version used when the
	// configuration does not pin one.
	DefaultPHPVersion = "8.4"

	// DefaultRegion is the deployment region used when none is configured.
	DefaultRegion = "us-east-1"

	DefaultEnvironment = "production"
)

// =============================================================================
// FeatureFlags
// =============================================================================

// FeatureFlags is the read-only set of options resolved before composition
// begins. It is created once at startup and never mutated afterwards; the
// composer only reads it.
type FeatureFlags struct {
	// AppName is the logical application name, used as the resource name
	// prefix for every subsystem.
	AppName string

	// Environment is the deployment environment name (production, staging).
	Environment string

	// Region is the target cloud region.
	Region string

	// PHPVersion selects the runtime layer version.
	PHPVersion string

	// UseMySQL enables the managed relational database and everything it
	// depends on (network, security boundary, credentials resolution).
	UseMySQL bool

	// UseVPC forces network isolation even without a database.
	UseVPC bool

	// UseOctane switches the web function to the long-running Octane
	// runtime instead of FPM.
	UseOctane bool

	// UseAPIWarmer enables the keep-warm trigger targeting the web function.
	UseAPIWarmer bool

	// UseArtisanScheduler enables the periodic console-runner trigger.
	UseArtisanScheduler bool

	// APIWarmRate overrides the keep-warm rate expression.
	APIWarmRate string

	// ArtisanScheduleRate overrides the console-runner rate expression.
	ArtisanScheduleRate string
}

// Normalized returns a copy with every empty optional field replaced by
// its default. The receiver is not modified.
func (f FeatureFlags) Normalized() FeatureFlags {
	if f.AppName == "" {
		f.AppName = "app"
	}
	if f.Environment == "" {
		f.Environment = DefaultEnvironment
	}
	if f.Region == "" {
		f.Region = DefaultRegion
	}
	if f.PHPVersion == "" {
		f.PHPVersion = DefaultPHPVersion
	}
	if f.APIWarmRate == "" {
		f.APIWarmRate = DefaultAPIWarmRate
	}
	if f.ArtisanScheduleRate == "" {
		f.ArtisanScheduleRate = DefaultArtisanScheduleRate
	}
	return f
}

// NetworkRequired reports whether a network topology must be created.
// The database cannot exist outside a network, so the network requirement
// is derived from the same flags that enable the database; requesting
// MySQL can therefore never produce a half-wired database with no network.
func (f FeatureFlags) NetworkRequired() bool {
	return f.UseMySQL || f.UseVPC
}

// DatabaseEnabled reports whether the managed database is requested.
func (f FeatureFlags) DatabaseEnabled() bool {
	return f.UseMySQL
}

// ResourcePrefix returns the name prefix shared by all provisioned
// resources, e.g. "myapp-production".
func (f FeatureFlags) ResourcePrefix() string {
	return f.AppName + "-" + f.Environment
}
