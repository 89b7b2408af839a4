// Package service is the control-plane facade behind the API: it renders
// configuration documents and drives gateway peer calls.
package service

import (
	"context"
	"time"

	"github.com/burrowhq/burrow/internal/compiler"
	"github.com/burrowhq/burrow/internal/dynconfig"
	"github.com/burrowhq/burrow/internal/gateway"
	"github.com/burrowhq/burrow/internal/model"
)

// SystemInfo contains version and runtime information.
type SystemInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime string    `json:"build_time"`
	StartedAt time.Time `json:"started_at"`
}

// ExitNodeStore lists and resolves exit nodes.
type ExitNodeStore interface {
	GetExitNode(ctx context.Context, id int64) (*model.ExitNode, error)
	ListExitNodes(ctx context.Context) ([]model.ExitNode, error)
}

// DocumentCompiler builds configuration documents.
type DocumentCompiler interface {
	Compile(ctx context.Context, p compiler.Params) (*dynconfig.Document, compiler.Stats, error)
}

// PeerController issues peer calls against exit nodes.
type PeerController interface {
	AddPeer(ctx context.Context, exitNodeID int64, peer gateway.Peer) (*gateway.Ack, error)
	RemovePeer(ctx context.Context, exitNodeID int64, publicKey string) (*gateway.Ack, error)
}

// RenderRecorder receives compilation telemetry.
type RenderRecorder interface {
	RecordCompilation(exitNodeID int64, result string, elapsed time.Duration, skipped int)
	SetDocumentRouters(exitNodeID int64, httpRouters, tcpRouters, udpRouters int)
}
