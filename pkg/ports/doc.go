/*
Package ports defines the driven ports (interfaces) of the ludics engine.

These interfaces decouple the interaction algorithms from storage, allowing the
engine to keep designs in memory, on disk, in Redis or in SQLite.

# Key Interfaces

  - LocusStore: creates and fetches the loci of a dialogue's locus tree.
  - DesignStore: persists designs together with their ordered acts.
  - Store: both of the above, the unit every adapter implements.
  - DistributedLocker: single-writer coordination for a design across replicas.
*/
package ports
