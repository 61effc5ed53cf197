// Package function builds immutable specifications of deployable compute
// units. Building a spec has no side effects; actual resource creation is
// the provisioning engine's responsibility.
package function

import "github.com/skiffhq/skiff/internal/core/async"

// =============================================================================
// Platform Bounds
// =============================================================================

const (
	// MaxTimeoutSeconds is the platform function-timeout ceiling.
	MaxTimeoutSeconds = 900

	// MinMemoryMB and MaxMemoryMB bound the allowed memory range.
	MinMemoryMB = 128
	MaxMemoryMB = 10240
)

// =============================================================================
// Environment
// =============================================================================

// Env is a function environment mapping. Values are deferred because some
// of them (database endpoint, credentials) are only known after dependent
// resources have been provisioned; static entries are pre-resolved.
type Env map[string]async.Value[string]

// Static builds an Env from plain string values.
func Static(entries map[string]string) Env {
	env := make(Env, len(entries))
	for k, v := range entries {
		env[k] = async.Resolved(v)
	}
	return env
}

// Merge returns a new Env holding every entry of base overlaid with every
// entry of override. The merge is right-biased: on a key collision the
// override entry wins. Neither input is modified.
func Merge(base, override Env) Env {
	merged := make(Env, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// =============================================================================
// Spec
// =============================================================================

// Architecture is the instruction set the function runs on.
type Architecture string

const (
	ArchX86   Architecture = "x86_64"
	ArchARM64 Architecture = "arm64"
)

// Spec is an immutable description of one deployable compute unit,
// ready for the provisioning engine.
type Spec struct {
	// Name is the function resource name.
	Name string

	// CodeRef references the packaged code artifact.
	CodeRef string

	// RoleName references the shared execution identity.
	RoleName string

	// Handler is the runtime entrypoint string.
	Handler string

	// Environment is the resolved environment mapping; keys are unique.
	Environment Env

	// Layers is the ordered list of resolved layer identifiers, in the
	// order the caller requested them.
	Layers []string

	// TimeoutSeconds and MemoryMB are validated against platform bounds.
	TimeoutSeconds int
	MemoryMB       int

	// Arch is the instruction set architecture.
	Arch Architecture

	// SubnetIDs and SecurityGroupID attach the function to the network
	// when one exists. They are deferred network-resolution results; nil
	// backing state means no network attachment.
	SubnetIDs       async.Value[[]string]
	SecurityGroupID async.Value[string]
}
