// Package database models the optional managed relational cluster and the
// credentials derived from its generated secret. The endpoint and secret
// reference resolve only after the provisioning engine has created the
// cluster; credentials resolve one step later, after the secret store
// lookup.
package database

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skiffhq/skiff/internal/core/async"
	"github.com/skiffhq/skiff/internal/core/network"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrEmptySecret is returned when the secret store hands back an empty
	// payload. Credentials are never defaulted; this fails the composition.
	ErrEmptySecret = errors.New("database secret payload is empty")

	// ErrMalformedSecret is returned when the secret payload is not the
	// expected credentials document.
	ErrMalformedSecret = errors.New("database secret payload is malformed")
)

// =============================================================================
// Cluster
// =============================================================================

// Spec describes the managed cluster to create.
type Spec struct {
	Name string

	// Engine is the database engine identifier (e.g. "aurora-mysql").
	Engine string

	// DatabaseName is the initial schema created with the cluster.
	DatabaseName string

	// Network and Boundary place the cluster inside the isolation group.
	Network  *network.Topology
	Boundary *network.Boundary
}

// Cluster is a created managed database cluster.
type Cluster struct {
	// Identifier is the cluster identifier, known at creation time.
	Identifier string

	// Endpoint resolves to the writer endpoint host.
	Endpoint async.Value[string]

	// SecretRef resolves to the opaque reference of the generated master
	// secret. It is an input to the secret store lookup, not the secret
	// itself.
	SecretRef async.Value[string]
}

// =============================================================================
// Credentials
// =============================================================================

// Credentials is the resolved database login.
type Credentials struct {
	Username string
	Password string
}

// secretPayload is the wire shape of the secret store document.
type secretPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ParseSecretPayload decodes a secret store payload into credentials.
// An empty or malformed payload is a configuration error.
func ParseSecretPayload(payload string) (Credentials, error) {
	if payload == "" {
		return Credentials{}, ErrEmptySecret
	}

	var doc secretPayload
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	if doc.Username == "" || doc.Password == "" {
		return Credentials{}, fmt.Errorf("%w: missing username or password", ErrMalformedSecret)
	}

	return Credentials{Username: doc.Username, Password: doc.Password}, nil
}

// DeriveCredentials maps a resolved secret payload to credentials.
// Failure of the payload chain, or a bad payload, fails the derived value
// and every function environment built on top of it.
func DeriveCredentials(payload async.Value[string]) async.Value[Credentials] {
	return async.MapErr(payload, ParseSecretPayload)
}
