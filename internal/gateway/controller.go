// Package gateway drives peer membership on exit nodes through their
// peer-control HTTP API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/burrowhq/burrow/internal/model"
	"github.com/burrowhq/burrow/internal/state"
)

const (
	opAddPeer    = "add_peer"
	opRemovePeer = "remove_peer"

	maxAckBytes = 64 << 10
)

// ExitNodeLookup resolves exit nodes. Implementations return state.ErrNotFound
// for unknown ids.
type ExitNodeLookup interface {
	GetExitNode(ctx context.Context, id int64) (*model.ExitNode, error)
}

// Peer is a mesh participant as the gateway API expects it.
type Peer struct {
	PublicKey  string   `json:"publicKey"`
	AllowedIPs []string `json:"allowedIps"`
}

// Ack is the gateway's acknowledgement of a peer call.
type Ack struct {
	Status string          `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// CallObserver is notified after every peer call. kind is empty on success.
type CallObserver func(op string, exitNodeID int64, kind string, elapsed time.Duration)

// Controller issues peer calls. It keeps no per-peer state and never retries;
// callers own retry policy.
type Controller struct {
	Lookup    ExitNodeLookup
	Client    *http.Client
	TimeoutFn func() time.Duration
	OnCall    CallObserver
}

// NewController creates a controller whose per-call timeout is read from
// timeoutFn on every request.
func NewController(lookup ExitNodeLookup, timeoutFn func() time.Duration) *Controller {
	if lookup == nil {
		panic("gateway: NewController requires non-nil lookup")
	}
	if timeoutFn == nil {
		panic("gateway: NewController requires non-nil timeoutFn")
	}
	return &Controller{
		Lookup:    lookup,
		TimeoutFn: timeoutFn,
	}
}

// AddPeer registers peer on the exit node.
func (c *Controller) AddPeer(ctx context.Context, exitNodeID int64, peer Peer) (*Ack, error) {
	body, err := json.Marshal(peer)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode peer: %w", err)
	}
	return c.call(ctx, opAddPeer, exitNodeID, func(ctx context.Context, base string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/peer", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// RemovePeer removes the peer identified by publicKey from the exit node.
func (c *Controller) RemovePeer(ctx context.Context, exitNodeID int64, publicKey string) (*Ack, error) {
	query := url.Values{"public_key": []string{publicKey}}.Encode()
	return c.call(ctx, opRemovePeer, exitNodeID, func(ctx context.Context, base string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, base+"/peer?"+query, nil)
	})
}

func (c *Controller) call(
	ctx context.Context,
	op string,
	exitNodeID int64,
	newRequest func(ctx context.Context, base string) (*http.Request, error),
) (ack *Ack, err error) {
	start := time.Now()
	defer func() {
		if c.OnCall == nil {
			return
		}
		kind := ""
		if err != nil {
			kind = KindOf(err).String()
		}
		c.OnCall(op, exitNodeID, kind, time.Since(start))
	}()

	base, err := c.resolve(ctx, op, exitNodeID)
	if err != nil {
		return nil, err
	}

	if timeout := c.TimeoutFn(); timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	req, err := newRequest(ctx, base)
	if err != nil {
		return nil, &PeerError{Kind: KindTransport, Op: op, ExitNodeID: exitNodeID, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &PeerError{Kind: KindTransport, Op: op, ExitNodeID: exitNodeID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBytes))
	if err != nil {
		return nil, &PeerError{Kind: KindTransport, Op: op, ExitNodeID: exitNodeID, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[gateway] %s on exit node %d rejected: status %d (request %s)", op, exitNodeID, resp.StatusCode, requestID)
		return nil, &PeerError{
			Kind:       KindRemoteRejected,
			Op:         op,
			ExitNodeID: exitNodeID,
			StatusCode: resp.StatusCode,
		}
	}

	ack = decodeAck(raw)
	log.Printf("[gateway] %s on exit node %d: status=%q (request %s)", op, exitNodeID, ack.Status, requestID)
	return ack, nil
}

// resolve returns the exit node's base URL without a trailing slash.
func (c *Controller) resolve(ctx context.Context, op string, exitNodeID int64) (string, error) {
	node, err := c.Lookup.GetExitNode(ctx, exitNodeID)
	if errors.Is(err, state.ErrNotFound) {
		return "", &PeerError{Kind: KindNotFound, Op: op, ExitNodeID: exitNodeID, Err: ErrExitNodeNotFound}
	}
	if err != nil {
		return "", fmt.Errorf("gateway: look up exit node %d: %w", exitNodeID, err)
	}
	base := strings.TrimRight(strings.TrimSpace(node.ReachableAt), "/")
	if base == "" {
		return "", &PeerError{Kind: KindUnreachable, Op: op, ExitNodeID: exitNodeID, Err: ErrExitNodeUnreachable}
	}
	return base, nil
}

func decodeAck(raw []byte) *Ack {
	ack := &Ack{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return ack
	}
	ack.Body = json.RawMessage(trimmed)
	var fields struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(trimmed, &fields); err == nil {
		ack.Status = fields.Status
	}
	return ack
}
