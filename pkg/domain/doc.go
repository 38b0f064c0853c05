/*
Package domain contains the core models and tree logic for wool.

It defines the branching text tree, the root-to-node context assembly, the explicit
generation settings, and the per-placeholder outcome contract. The package is kept
pure: no I/O, no network, no persistence.

# Key Entities

  - Node: one delta of text with a single parent (ai-generated or user-authored).
  - Tree: the node mapping plus the focused node reference. Safe for concurrent use.
  - Settings: every recognised generation/configuration option, with defaults.
  - Result / Outcome: success text or failure reason, returned as data.
*/
package domain
