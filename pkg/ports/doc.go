/*
Package ports defines the driven ports (interfaces) for the wool service.

These interfaces decouple the tree and fan-out logic from external implementations,
so the core can be exercised without a filesystem or a network.

# Key Interfaces

  - TreeStore: persists and loads whole trees (file, memory, redis).
  - Generator: turns a prompt and settings into one completion result.
  - DistributedLocker: coordinates tree access across replicas.
*/
package ports
