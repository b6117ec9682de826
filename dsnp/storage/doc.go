// Package storage provides write sinks and locator openers for batch files.
//
// Concrete object stores are expected to live with the caller; the memory
// and directory stores here cover tests, local tooling and single-host
// deployments. Resolver dispatches a locator to the opener registered for
// its longest matching prefix, so one reader can follow pointers that name
// different backends.
package storage
