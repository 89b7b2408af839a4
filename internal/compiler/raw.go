package compiler

import (
	"strconv"
	"strings"

	"github.com/burrowhq/burrow/internal/dynconfig"
	"github.com/burrowhq/burrow/internal/topology"
)

// addRawGroup emits the TCP or UDP router/service pair of one raw resource.
// The router listens on the entrypoint named <protocol>-<port>.
func (b *builder) addRawGroup(g *topology.ResourceGroup) {
	if !g.EnableProxy {
		b.skip(g, "proxy disabled")
		return
	}
	if g.ProxyPort == 0 {
		b.skip(g, "no proxy port")
		return
	}

	protocol := strings.ToLower(g.Protocol)
	entrypoint := protocol + "-" + strconv.Itoa(g.ProxyPort)
	router := routerName(g)
	service := serviceName(g)

	svc := dynconfig.NewRawService(topology.ResolveBackends(g.Targets, topology.ModeRaw, b.opts.BackendPolicy))
	if g.StickySession {
		svc.LoadBalancer.Sticky = &dynconfig.RawSticky{
			IPStrategy: &dynconfig.IPStrategy{Depth: 0, SourcePort: true},
		}
	}

	switch protocol {
	case "tcp":
		tcp := b.doc.EnsureTCP()
		tcp.Routers[router] = &dynconfig.TCPRouter{
			EntryPoints: []string{entrypoint},
			Service:     service,
			Rule:        "HostSNI(`*`)",
		}
		tcp.Services[service] = svc
	case "udp":
		udp := b.doc.EnsureUDP()
		udp.Routers[router] = &dynconfig.UDPRouter{
			EntryPoints: []string{entrypoint},
			Service:     service,
		}
		udp.Services[service] = svc
	default:
		b.skip(g, "unsupported protocol "+protocol)
		return
	}
	b.stats.Emitted++
}
