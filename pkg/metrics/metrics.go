// Package metrics exposes docker/go-metrics namespaces for the storage and
// solver layers, registered with the default prometheus registry the way
// the teacher's metrics/prometheus.go registers its own namespaces.
package metrics

import (
	"time"

	"github.com/docker/go-metrics"
)

const namespacePrefix = "spfs"

var (
	// StorageNamespace covers Database/PayloadStore/TagStore operation
	// counters and latency histograms.
	StorageNamespace = metrics.NewNamespace(namespacePrefix, "storage", nil)

	// SolverNamespace covers SPK solver decision-tree search metrics.
	SolverNamespace = metrics.NewNamespace(namespacePrefix, "solver", nil)
)

var (
	objectWrites  = StorageNamespace.NewCounter("object_writes_total", "number of objects written to the database")
	payloadWrites = StorageNamespace.NewLabeledTimer("payload_write_duration_seconds", "time spent writing payloads", "driver")
	tagPushes     = StorageNamespace.NewCounter("tag_pushes_total", "number of tag records appended")

	solverDecisions = SolverNamespace.NewCounter("decisions_total", "number of decision nodes explored")
	solverBacktracks = SolverNamespace.NewCounter("backtracks_total", "number of times the solver backtracked")
)

func init() {
	metrics.Register(StorageNamespace)
	metrics.Register(SolverNamespace)
}

// IncObjectWrites records one object having been written to the database.
func IncObjectWrites() { objectWrites.Increment() }

// ObservePayloadWrite records the duration of a payload write against the
// named driver.
func ObservePayloadWrite(driver string, d time.Duration) {
	payloadWrites.WithValues(driver).Update(d)
}

// IncTagPushes records one tag record having been appended.
func IncTagPushes() { tagPushes.Increment() }

// IncSolverDecisions records one decision node having been explored.
func IncSolverDecisions() { solverDecisions.Increment() }

// IncSolverBacktracks records one backtrack out of a dead-end branch.
func IncSolverBacktracks() { solverBacktracks.Increment() }
