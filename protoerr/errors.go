// Package protoerr defines the sentinel error kinds shared by the TA, GS,
// and UAV protocol handlers. Handlers wrap these with fmt.Errorf("...: %w", ...)
// and callers compare with errors.Is.
package protoerr

import "errors"

var (
	// ErrDecode signals malformed hex, a bad point compression, or a wrong length.
	ErrDecode = errors.New("decode error")

	// ErrUnknownGid signals a gid not present in the GS directory.
	ErrUnknownGid = errors.New("unknown gid")

	// ErrUnknownUid signals a uid not present in the UAV directory.
	ErrUnknownUid = errors.New("unknown uid")

	// ErrStale signals a timestamp outside the freshness window.
	ErrStale = errors.New("stale timestamp")

	// ErrBadSig signals a pairing-equation verification failure.
	ErrBadSig = errors.New("bad signature")

	// ErrPufUnavailable signals a PUF adapter failure or response length mismatch.
	ErrPufUnavailable = errors.New("puf unavailable")

	// ErrTimeout signals an RPC deadline was exceeded.
	ErrTimeout = errors.New("rpc timeout")

	// ErrCollision signals a freshly drawn uid clashed with an existing one.
	ErrCollision = errors.New("uid collision")

	// ErrConfigMissing signals a UAV config file absent in non-register mode.
	ErrConfigMissing = errors.New("config missing")

	// ErrDegenerateCrt signals a CRT combinator built over non-pairwise-distinct primes.
	ErrDegenerateCrt = errors.New("degenerate crt: primes not pairwise distinct")
)
