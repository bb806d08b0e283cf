// Package manager provides lifecycle, download, admission, and inference
// coordination for model artifacts. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults.
//   - types.go: internal state types (modelState, Instance).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, ...).
//   - availability.go: per-model availability derivation.
//   - ensure.go: EnsureModel, deduplicated downloads with progress fan-out.
//   - fetch.go: Fetcher implementations (local file, http).
//   - admission.go: per-model queueing and generation admission.
//   - inference.go: Generate entry point, lazy adapter loading.
//   - unload.go: graceful drain and release of a loaded model.
//   - status_report.go: Status reporting.
//   - events.go, eventpub_memory.go: lifecycle events.
//
// Inference runtimes:
//
//   - echo (default): deterministic in-process generator, no model weights
//     are read. Used for development and tests.
//   - llama: go-llama.cpp adapter, enabled with `-tags=llama`. A stub that
//     reports a dependency-unavailable error is compiled otherwise.
//
// External packages should treat this package as the orchestration layer and use
// public methods only. Internal types are subject to change.
package manager
