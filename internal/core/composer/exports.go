package composer

import (
	"strconv"

	"github.com/skiffhq/skiff/internal/core/async"
)

// =============================================================================
// Exported Values
// =============================================================================

// Export keys available to the provisioning engine and operator tooling.
const (
	ExportAPIURL           = "apiUrl"
	ExportBucketName       = "bucketName"
	ExportWebFunction      = "webFunction"
	ExportArtisanFunction  = "artisanFunction"
	ExportWorkerFunction   = "workerFunction"
	ExportExecutionRole    = "executionRole"
	ExportQueueURL         = "queueUrl"
	ExportOctane           = "octane"
	ExportNetworkID        = "networkId"
	ExportDatabaseCluster  = "databaseCluster"
	ExportDatabaseEndpoint = "databaseEndpoint"
)

// buildExports assembles the flat export mapping. Identifiers of optional
// components that were not created export as empty strings through an
// explicit branch; consumers rely on the key always being present.
func buildExports(d *Deployment) map[string]async.Value[string] {
	exports := map[string]async.Value[string]{
		ExportAPIURL:          d.Endpoint,
		ExportBucketName:      d.Bucket.ID,
		ExportWebFunction:     async.Resolved(d.Web.Spec.Name),
		ExportArtisanFunction: async.Resolved(d.Artisan.Spec.Name),
		ExportWorkerFunction:  async.Resolved(d.Worker.Spec.Name),
		ExportExecutionRole:   d.RoleRef,
		ExportQueueURL:        d.Queue.URL,
		ExportOctane:          async.Resolved(strconv.FormatBool(d.Flags.UseOctane)),
	}

	if d.Network != nil {
		exports[ExportNetworkID] = d.Network.ID
	} else {
		exports[ExportNetworkID] = async.Resolved("")
	}

	if d.Database != nil {
		exports[ExportDatabaseCluster] = async.Resolved(d.Database.Identifier)
		exports[ExportDatabaseEndpoint] = d.Database.Endpoint
	} else {
		exports[ExportDatabaseCluster] = async.Resolved("")
		exports[ExportDatabaseEndpoint] = async.Resolved("")
	}

	return exports
}
