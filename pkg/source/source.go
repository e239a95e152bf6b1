// Package source defines the contract every secret source adapter
// implements. The registry that builds one from a config.SourceSpec is
// internal/source.Build.
package source

import (
	"context"

	"github.com/Josh5/secretpush/pkg/secretitem"
)

// Source collects the authoritative set of items it owns. A single
// call to Collect is expected to be self-contained: no caller-visible
// state survives between calls, and a source that fails partway
// through returns an error rather than a partial item list.
type Source interface {
	// Name is the declared name from the config (or the type, if the
	// source was declared without one).
	Name() string
	// Collect pulls every item this source currently owns. It must
	// respect ctx cancellation when the underlying work is cancellable
	// (subprocess calls, file reads under a timeout).
	Collect(ctx context.Context) ([]secretitem.Item, error)
}
