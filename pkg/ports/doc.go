/*
Package ports defines the driven ports (interfaces) for the Sequent engine.

These interfaces decouple the core sequencing logic from external
implementations, allowing the engine to work with different manifest sources,
snapshot storage backends, and distributed lockers.

# Key Interfaces

  - ManifestLoader: supplies the parsed manifest structure the tree is built from.
  - SnapshotStore: persists and loads session snapshots.
  - DistributedLocker: provides locking for concurrent access to one session.
*/
package ports
