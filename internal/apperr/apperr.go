// Package apperr defines the sentinel error taxonomy used across the processing
// tier so callers can branch with errors.Is/errors.As instead of matching strings.
package apperr

import "errors"

var (
	// ErrConfigInvalid means a required setting was missing or malformed at
	// startup. The process exits before attempting any connection.
	ErrConfigInvalid = errors.New("apperr: invalid configuration")

	// ErrStoreUnavailable wraps a connection or query failure from the
	// persistence layer. It aborts the enclosing transaction.
	ErrStoreUnavailable = errors.New("apperr: store unavailable")

	// ErrNodeUnavailable wraps an RPC failure talking to the node.
	// Reconnection is left to the gRPC client library; there is no custom
	// retry loop here.
	ErrNodeUnavailable = errors.New("apperr: node unavailable")

	// ErrNodeNotFound means the node does not know the requested block or
	// parent hash. Non-fatal during dependency expansion near the pruning
	// horizon.
	ErrNodeNotFound = errors.New("apperr: block not found on node")

	// ErrConsistencyMissing means a parent or selected-parent id that is
	// expected to exist in the store could not be resolved.
	ErrConsistencyMissing = errors.New("apperr: expected block id not found in store")

	// ErrTooManyMissingDependencies is the dependency-batch tripwire. It is
	// fatal: the store has drifted too far from the node to recover
	// incrementally and an operator-initiated resync from scratch is
	// required.
	ErrTooManyMissingDependencies = errors.New("apperr: too many missing dependencies, restart with --clear-db --resync")
)
