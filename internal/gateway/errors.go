package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a failed peer call.
type Kind int

const (
	// KindNotFound: the exit node does not exist.
	KindNotFound Kind = iota + 1
	// KindUnreachable: the exit node has no reachable address on record.
	KindUnreachable
	// KindRemoteRejected: the gateway answered with a non-2xx status.
	KindRemoteRejected
	// KindTransport: the request could not be sent or the answer not read.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnreachable:
		return "unreachable"
	case KindRemoteRejected:
		return "remote_rejected"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

var (
	ErrExitNodeNotFound    = errors.New("exit node not found")
	ErrExitNodeUnreachable = errors.New("exit node is not reachable")
)

// PeerError is returned by every failed AddPeer/RemovePeer call.
type PeerError struct {
	Kind       Kind
	Op         string
	ExitNodeID int64
	// StatusCode is the gateway's HTTP status for KindRemoteRejected.
	StatusCode int
	Err        error
}

func (e *PeerError) Error() string {
	switch e.Kind {
	case KindRemoteRejected:
		return fmt.Sprintf("gateway: %s on exit node %d: gateway responded with status %d", e.Op, e.ExitNodeID, e.StatusCode)
	default:
		return fmt.Sprintf("gateway: %s on exit node %d: %v", e.Op, e.ExitNodeID, e.Err)
	}
}

func (e *PeerError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a *PeerError in err's chain, or 0.
func KindOf(err error) Kind {
	var pe *PeerError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
