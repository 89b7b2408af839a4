package service

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/maypok86/otter"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"

	"github.com/burrowhq/burrow/internal/compiler"
	"github.com/burrowhq/burrow/internal/gateway"
	"github.com/burrowhq/burrow/internal/metrics"
	"github.com/burrowhq/burrow/internal/model"
	"github.com/burrowhq/burrow/internal/state"
)

// Output formats of a rendered document.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const renderCacheCapacity = 1024

// RenderRequest selects one document.
type RenderRequest struct {
	ExitNodeID                int64
	SiteTypes                 []model.SiteType
	FilterOutNamespaceDomains bool
	GenerateLoginPageRouters  bool
	Format                    string
}

// RenderedConfig is a serialized document plus its validator.
type RenderedConfig struct {
	ExitNodeID  int64
	Format      string
	ContentType string
	Body        []byte
	ETag        string
	Stats       compiler.Stats
	RenderedAt  time.Time
	Cached      bool
}

// RenderStatus summarizes the last render of an exit node's document.
type RenderStatus struct {
	ExitNodeID   int64          `json:"exit_node_id"`
	LastRenderAt time.Time      `json:"last_render_at"`
	ETag         string         `json:"etag,omitempty"`
	Stats        compiler.Stats `json:"stats"`
	HTTPRouters  int            `json:"http_routers"`
	TCPRouters   int            `json:"tcp_routers"`
	UDPRouters   int            `json:"udp_routers"`
	Renders      uint64         `json:"renders"`
	LastError    string         `json:"last_error,omitempty"`
}

// ServiceConfig wires a ControlPlaneService.
type ServiceConfig struct {
	ExitNodes ExitNodeStore
	Compiler  DocumentCompiler
	Peers     PeerController
	// Recorder is optional.
	Recorder RenderRecorder
	// RenderCacheTTL <= 0 disables the render cache.
	RenderCacheTTL time.Duration
}

// ControlPlaneService provides all control plane operations.
// Handlers call its methods; business logic lives here, not in handlers.
type ControlPlaneService struct {
	exitNodes ExitNodeStore
	compiler  DocumentCompiler
	peers     PeerController
	recorder  RenderRecorder

	cache  *otter.Cache[uint64, *RenderedConfig]
	status *xsync.Map[int64, RenderStatus]
}

// NewControlPlaneService creates the service.
func NewControlPlaneService(cfg ServiceConfig) *ControlPlaneService {
	s := &ControlPlaneService{
		exitNodes: cfg.ExitNodes,
		compiler:  cfg.Compiler,
		peers:     cfg.Peers,
		recorder:  cfg.Recorder,
		status:    xsync.NewMap[int64, RenderStatus](),
	}
	if cfg.RenderCacheTTL > 0 {
		cache, err := otter.MustBuilder[uint64, *RenderedConfig](renderCacheCapacity).
			Cost(func(_ uint64, _ *RenderedConfig) uint32 { return 1 }).
			WithTTL(cfg.RenderCacheTTL).
			Build()
		if err != nil {
			panic("service: failed to create render cache: " + err.Error())
		}
		s.cache = &cache
	}
	return s
}

// Close releases the render cache.
func (s *ControlPlaneService) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// ------------------------------------------------------------------
// Configuration documents
// ------------------------------------------------------------------

// RenderConfig compiles, serializes and fingerprints the document selected
// by req. Identical requests within the cache TTL share one render.
func (s *ControlPlaneService) RenderConfig(ctx context.Context, req RenderRequest) (*RenderedConfig, error) {
	req, verr := normalizeRenderRequest(req)
	if verr != nil {
		return nil, verr
	}
	if _, err := s.exitNodes.GetExitNode(ctx, req.ExitNodeID); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, notFound(fmt.Sprintf("exit node %d not found", req.ExitNodeID))
		}
		return nil, internal("look up exit node", err)
	}

	key := renderCacheKey(req)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.record(req.ExitNodeID, metrics.ResultCached, 0, 0)
			hit := *cached
			hit.Cached = true
			return &hit, nil
		}
	}

	start := time.Now()
	doc, stats, err := s.compiler.Compile(ctx, compiler.Params{
		ExitNodeID:                req.ExitNodeID,
		SiteTypes:                 req.SiteTypes,
		FilterOutNamespaceDomains: req.FilterOutNamespaceDomains,
		GenerateLoginPageRouters:  req.GenerateLoginPageRouters,
	})
	if err != nil {
		s.record(req.ExitNodeID, metrics.ResultError, time.Since(start), 0)
		s.markFailed(req.ExitNodeID, err)
		return nil, internal("compile configuration", err)
	}

	var body []byte
	contentType := "application/json"
	if req.Format == FormatYAML {
		body, err = doc.YAML()
		contentType = "application/yaml"
	} else {
		body, err = doc.JSON()
	}
	if err != nil {
		s.record(req.ExitNodeID, metrics.ResultError, time.Since(start), 0)
		s.markFailed(req.ExitNodeID, err)
		return nil, internal("serialize configuration", err)
	}

	rendered := &RenderedConfig{
		ExitNodeID:  req.ExitNodeID,
		Format:      req.Format,
		ContentType: contentType,
		Body:        body,
		ETag:        documentETag(body),
		Stats:       stats,
		RenderedAt:  time.Now(),
	}
	if s.cache != nil {
		s.cache.Set(key, rendered)
	}

	counts := doc.Count()
	s.record(req.ExitNodeID, metrics.ResultOK, time.Since(start), stats.Skipped)
	if s.recorder != nil {
		s.recorder.SetDocumentRouters(req.ExitNodeID, counts.HTTPRouters, counts.TCPRouters, counts.UDPRouters)
	}
	s.status.Compute(req.ExitNodeID, func(old RenderStatus, _ bool) (RenderStatus, xsync.ComputeOp) {
		return RenderStatus{
			ExitNodeID:   req.ExitNodeID,
			LastRenderAt: rendered.RenderedAt,
			ETag:         rendered.ETag,
			Stats:        stats,
			HTTPRouters:  counts.HTTPRouters,
			TCPRouters:   counts.TCPRouters,
			UDPRouters:   counts.UDPRouters,
			Renders:      old.Renders + 1,
		}, xsync.UpdateOp
	})

	copied := *rendered
	return &copied, nil
}

// GetRenderStatus returns the last render summary of an exit node.
func (s *ControlPlaneService) GetRenderStatus(exitNodeID int64) (*RenderStatus, error) {
	st, ok := s.status.Load(exitNodeID)
	if !ok {
		return nil, notFound(fmt.Sprintf("exit node %d has not been rendered", exitNodeID))
	}
	return &st, nil
}

// InvalidateRenders drops every cached render, e.g. after a config reload.
func (s *ControlPlaneService) InvalidateRenders() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

// RefreshAll renders the default document of every exit node. Failures are
// logged per exit node and counted; only a failed exit node listing aborts.
func (s *ControlPlaneService) RefreshAll(ctx context.Context) (rendered, failed int, err error) {
	nodes, err := s.exitNodes.ListExitNodes(ctx)
	if err != nil {
		return 0, 0, internal("list exit nodes", err)
	}
	for _, n := range nodes {
		if ctx.Err() != nil {
			return rendered, failed, ctx.Err()
		}
		_, rerr := s.RenderConfig(ctx, RenderRequest{
			ExitNodeID:               n.ID,
			SiteTypes:                model.AllSiteTypes,
			GenerateLoginPageRouters: true,
		})
		if rerr != nil {
			failed++
			log.Printf("[refresh] exit node %d: %v", n.ID, rerr)
			continue
		}
		rendered++
	}
	return rendered, failed, nil
}

func (s *ControlPlaneService) record(exitNodeID int64, result string, elapsed time.Duration, skipped int) {
	if s.recorder != nil {
		s.recorder.RecordCompilation(exitNodeID, result, elapsed, skipped)
	}
}

func (s *ControlPlaneService) markFailed(exitNodeID int64, err error) {
	s.status.Compute(exitNodeID, func(old RenderStatus, _ bool) (RenderStatus, xsync.ComputeOp) {
		old.ExitNodeID = exitNodeID
		old.LastError = err.Error()
		return old, xsync.UpdateOp
	})
}

func normalizeRenderRequest(req RenderRequest) (RenderRequest, *ServiceError) {
	if req.ExitNodeID <= 0 {
		return req, invalidArg("exit_node_id: must be a positive integer")
	}
	switch req.Format {
	case "":
		req.Format = FormatJSON
	case FormatJSON, FormatYAML:
	default:
		return req, invalidArg(fmt.Sprintf("format: unsupported value %q", req.Format))
	}
	if len(req.SiteTypes) == 0 {
		req.SiteTypes = model.AllSiteTypes
	}
	types := make([]model.SiteType, 0, len(req.SiteTypes))
	for _, st := range req.SiteTypes {
		if !st.IsValid() {
			return req, invalidArg(fmt.Sprintf("site_types: unknown site type %q", st))
		}
		if !slices.Contains(types, st) {
			types = append(types, st)
		}
	}
	slices.Sort(types)
	req.SiteTypes = types
	return req, nil
}

func renderCacheKey(req RenderRequest) uint64 {
	parts := make([]string, 0, len(req.SiteTypes))
	for _, st := range req.SiteTypes {
		parts = append(parts, string(st))
	}
	key := fmt.Sprintf("%d|%s|%t|%t|%s", req.ExitNodeID, strings.Join(parts, ","),
		req.FilterOutNamespaceDomains, req.GenerateLoginPageRouters, req.Format)
	return xxh3.HashString(key)
}

// documentETag returns a strong validator derived from the rendered bytes.
func documentETag(body []byte) string {
	h128 := xxh3.Hash128(body)
	var sum [16]byte
	binary.LittleEndian.PutUint64(sum[:8], h128.Lo)
	binary.LittleEndian.PutUint64(sum[8:], h128.Hi)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// ListExitNodes returns every exit node ordered by id.
func (s *ControlPlaneService) ListExitNodes(ctx context.Context) ([]model.ExitNode, error) {
	nodes, err := s.exitNodes.ListExitNodes(ctx)
	if err != nil {
		return nil, internal("list exit nodes", err)
	}
	if nodes == nil {
		nodes = []model.ExitNode{}
	}
	return nodes, nil
}

// ------------------------------------------------------------------
// Peers
// ------------------------------------------------------------------

// AddPeer validates peer and registers it on the exit node.
func (s *ControlPlaneService) AddPeer(ctx context.Context, exitNodeID int64, peer gateway.Peer) (*gateway.Ack, error) {
	if exitNodeID <= 0 {
		return nil, invalidArg("exit_node_id: must be a positive integer")
	}
	peer.PublicKey = strings.TrimSpace(peer.PublicKey)
	if peer.PublicKey == "" {
		return nil, invalidArg("publicKey: must be non-empty")
	}
	if peer.AllowedIPs == nil {
		peer.AllowedIPs = []string{}
	}
	for _, cidr := range peer.AllowedIPs {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return nil, invalidArg(fmt.Sprintf("allowedIps: invalid prefix %q", cidr))
		}
	}
	ack, err := s.peers.AddPeer(ctx, exitNodeID, peer)
	if err != nil {
		return nil, gatewayError(err)
	}
	return ack, nil
}

// RemovePeer removes the peer identified by publicKey from the exit node.
func (s *ControlPlaneService) RemovePeer(ctx context.Context, exitNodeID int64, publicKey string) (*gateway.Ack, error) {
	if exitNodeID <= 0 {
		return nil, invalidArg("exit_node_id: must be a positive integer")
	}
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return nil, invalidArg("public_key: must be non-empty")
	}
	ack, err := s.peers.RemovePeer(ctx, exitNodeID, publicKey)
	if err != nil {
		return nil, gatewayError(err)
	}
	return ack, nil
}
