/*
Package ports defines the driven ports (interfaces) for the ludus engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, artifact sources and lock
managers.

# Key Interfaces

  - ArtifactSource: Loads the artifact set of a game version (e.g., from Loam, disk or memory).
  - StateStore: Persists and loads session snapshots.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - SessionService: The session API consumed by the HTTP and MCP adapters.
*/
package ports
