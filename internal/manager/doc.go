// Package manager runs one model runtime per configured model: it resolves
// the model reference, loads the adapter, keeps it hot-reloaded, gates
// concurrent streams and drains on shutdown. It is structured into small
// files by concern:
//
//   - manager.go: Manager type, constructor, getters.
//   - config.go: Config and package defaults.
//   - types.go: lifecycle State and Snapshot.
//   - errors.go: error types and helpers (IsDraining, IsTimeout, ...).
//   - gate.go: Gate, the bounded admission and drain control for streams.
//   - load.go: Load, adapter construction and watch start.
//   - reload.go: serialized hot reload driven by the resolver watch.
//   - predict.go: single-shot Predict under a deadline.
//   - stream.go: PredictStream with sentinel termination.
//   - codec.go: request decoding and chunk packing.
//   - finalize.go: StartDrain and Finalize.
//   - group.go: Group, the set of runtimes served by one process.
//   - status_report.go: Status projections for the HTTP API.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//
// Calls capture the active adapter once at call start; reloads swap the
// adapter's backend atomically, so in-flight calls finish on the backend they
// started with.
package manager
