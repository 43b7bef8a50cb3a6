// Package protoerr defines the sentinel errors the dispatcher converts
// into wire-level response tags, grounded on modasi-mika/self20-mika's
// style of layering github.com/pkg/errors over a small set of sentinel
// values.
package protoerr

import "errors"

var (
	// ErrUnknownCommand means the decoded list's type tag has no dispatch
	// table entry.
	ErrUnknownCommand = errors.New("protoerr: unknown command tag")

	// ErrBadArity means the decoded list's tail does not match the
	// command's declared argument schema, in count or type.
	ErrBadArity = errors.New("protoerr: argument count or type mismatch")

	// ErrStaleView means the RC guard rejected the command because a
	// facet it depends on has advanced past the client's echoed seq.
	ErrStaleView = errors.New("protoerr: command evaluated against a stale view")

	// ErrNoChange means the command was valid and safe but produced no
	// state transition (COMMANDNOOP).
	ErrNoChange = errors.New("protoerr: command made no change")

	// ErrNotFound means the command referenced a client index or
	// info-hash that does not exist in server state.
	ErrNotFound = errors.New("protoerr: no such client or torrent")

	// ErrBadState means the command's preconditions on target state
	// (e.g. DROPBTH requiring an inactive BTH) were not met.
	ErrBadState = errors.New("protoerr: target is not in a valid state for this command")
)
