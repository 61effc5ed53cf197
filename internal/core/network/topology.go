// Package network models the optional network isolation boundary and the
// security boundary scoped to it. Identifiers are deferred values: they
// become known only after the provisioning engine has created the
// underlying resources.
package network

import "github.com/skiffhq/skiff/internal/core/async"

// =============================================================================
// Routing
// =============================================================================

// RoutingMode describes how subnets route traffic.
type RoutingMode string

const (
	RoutingPublic  RoutingMode = "public"
	RoutingPrivate RoutingMode = "private"
	RoutingMixed   RoutingMode = "mixed"
)

// =============================================================================
// Topology
// =============================================================================

// Spec describes the network topology to create.
type Spec struct {
	// Name is the resource name, derived from the app prefix.
	Name string

	// CIDR is the address block of the network.
	CIDR string

	// SubnetCount is the number of subnets to spread across zones.
	SubnetCount int

	// Routing selects the subnet routing mode.
	Routing RoutingMode
}

// Topology is a created network boundary. Immutable after creation; the
// deferred fields resolve once the provisioning engine reports the
// underlying resources.
type Topology struct {
	// ID resolves to the network identifier.
	ID async.Value[string]

	// SubnetIDs resolves to the ordered subnet identifier list.
	SubnetIDs async.Value[[]string]

	// Routing is the routing mode the topology was created with.
	Routing RoutingMode
}

// =============================================================================
// Security Boundary
// =============================================================================

// BoundarySpec describes an isolation group scoped to a topology.
type BoundarySpec struct {
	Name string

	// Network is the owning topology. A boundary cannot exist without it.
	Network *Topology
}

// Boundary is a created isolation group.
type Boundary struct {
	// ID resolves to the isolation-group identifier.
	ID async.Value[string]

	// Network is the owning topology reference.
	Network *Topology
}
