// Package compiler turns a topology snapshot into the edge proxy's dynamic
// configuration document for one exit node.
//
// Compilation is a pure function of the snapshot, the Params and the Options
// in effect: it never writes topology state and equal inputs render to
// identical documents. A Compiler may be used from many goroutines at once.
package compiler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/burrowhq/burrow/internal/dynconfig"
	"github.com/burrowhq/burrow/internal/model"
	"github.com/burrowhq/burrow/internal/topology"
)

// SnapshotReader loads the topology rows of one exit node.
type SnapshotReader interface {
	ReadSnapshot(ctx context.Context, q model.SnapshotQuery) (*model.Snapshot, error)
}

// Compiler reads snapshots and builds documents under swappable Options.
type Compiler struct {
	reader SnapshotReader
	opts   atomic.Pointer[Options]
}

// New creates a Compiler.
func New(reader SnapshotReader, opts Options) *Compiler {
	c := &Compiler{reader: reader}
	c.opts.Store(&opts)
	return c
}

// Options returns the options currently in effect.
func (c *Compiler) Options() Options {
	return *c.opts.Load()
}

// SetOptions replaces the options used by subsequent compilations.
func (c *Compiler) SetOptions(opts Options) {
	c.opts.Store(&opts)
}

// Compile reads a fresh snapshot for p.ExitNodeID and builds its document.
// Only a failed snapshot read is an error; per-resource problems are skipped.
func (c *Compiler) Compile(ctx context.Context, p Params) (*dynconfig.Document, Stats, error) {
	opts := c.Options()
	snap, err := c.reader.ReadSnapshot(ctx, model.SnapshotQuery{
		ExitNodeID:          p.ExitNodeID,
		SiteTypes:           p.SiteTypes,
		IncludeRawResources: opts.AllowRawResources,
		IncludeLoginPages:   p.GenerateLoginPageRouters,
	})
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read snapshot for exit node %d: %w", p.ExitNodeID, err)
	}
	doc, stats := Build(snap, p, opts)
	return doc, stats, nil
}

// Build compiles snap into a document. When no resource group survives
// grouping the document is empty and login pages are not generated either.
func Build(snap *model.Snapshot, p Params, opts Options) (*dynconfig.Document, Stats) {
	b := &builder{
		doc:  &dynconfig.Document{},
		opts: opts,
	}
	if snap == nil {
		return b.doc, b.stats
	}

	groups := topology.GroupRows(snap.Rows, p.FilterOutNamespaceDomains)
	b.stats.Groups = groups.Len()
	if groups.Len() == 0 {
		return b.doc, b.stats
	}

	b.addSharedMiddlewares()
	for _, g := range groups.Groups() {
		if !g.Enabled {
			b.skip(g, "resource disabled")
			continue
		}
		if g.HTTP {
			b.addHTTPGroup(g)
		} else {
			b.addRawGroup(g)
		}
	}

	if p.GenerateLoginPageRouters {
		b.addLoginPages(snap.LoginPages)
	}
	return b.doc, b.stats
}

type builder struct {
	doc   *dynconfig.Document
	opts  Options
	stats Stats
}

func (b *builder) skip(g *topology.ResourceGroup, reason string) {
	b.stats.Skipped++
	if b.opts.Debug {
		log.Printf("[compiler] skip resource %d (%s): %s", g.ResourceID, g.Key, reason)
	}
}

func (b *builder) addSharedMiddlewares() {
	h := b.doc.EnsureHTTP()
	h.AddMiddleware(RedirectHTTPSMiddlewareName, &dynconfig.Middleware{
		RedirectScheme: &dynconfig.RedirectScheme{Scheme: "https"},
	})
	h.AddMiddleware(RedirectToRootMiddlewareName, &dynconfig.Middleware{
		RedirectRegex: &dynconfig.RedirectRegex{
			Regex:       "^(https?)://([^/]+)(/.*)?",
			Replacement: "${1}://${2}/auth/org",
			Permanent:   false,
		},
	})
}
