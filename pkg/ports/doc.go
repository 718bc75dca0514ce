/*
Package ports defines the driven ports (interfaces) of the Virtuoso engine.

These interfaces decouple the Composer and Conductor from external
implementations, allowing playback against any transport and persistence
against any storage backend.

# Key Interfaces

  - ConnectionManager: Opens, closes and sends on accounts, and streams their inbound events.
  - Backend: Persists raw JSON documents keyed by id, in insertion order.
  - DistributedLocker: Coordinates account operations across replicas.
*/
package ports
