// Package domain defines the core types shared by the alias breach checker.
//
// Types in this package are plain value objects. They carry no HTTP clients,
// no configuration and no I/O; the provider clients produce them and the
// pipeline and report packages consume them.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *http.Client or context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Validation methods and pure helpers are allowed
package domain
