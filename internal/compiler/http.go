package compiler

import (
	"log"

	"github.com/burrowhq/burrow/internal/dynconfig"
	"github.com/burrowhq/burrow/internal/model"
	"github.com/burrowhq/burrow/internal/topology"
)

func routerName(g *topology.ResourceGroup) string  { return g.Key + "-" + g.Name + "-router" }
func serviceName(g *topology.ResourceGroup) string { return g.Key + "-" + g.Name + "-service" }

// addHTTPGroup emits the router, optional redirect router, service, header
// middleware and transport of one HTTP resource group, or nothing at all.
func (b *builder) addHTTPGroup(g *topology.ResourceGroup) {
	switch {
	case g.DomainID == "":
		b.skip(g, "no domain")
		return
	case g.FullDomain == "":
		b.skip(g, "no full domain")
		return
	case g.CertificateStatus != model.CertificateValid:
		b.skip(g, "certificate status "+string(g.CertificateStatus))
		return
	}

	h := b.doc.EnsureHTTP()
	router := routerName(g)
	service := serviceName(g)
	host := asciiHost(g.FullDomain)

	middlewares := make([]string, 0, 2+len(b.opts.AdditionalMiddlewares))
	middlewares = append(middlewares, AuthMiddlewareName)
	middlewares = append(middlewares, b.opts.AdditionalMiddlewares...)

	if g.Headers != "" || g.SetHostHeader != "" {
		headers, err := customRequestHeaders(g.Headers, g.SetHostHeader)
		if err != nil {
			log.Printf("[compiler] WARN: failed to parse headers for resource %d: %v", g.ResourceID, err)
		}
		if len(headers) > 0 {
			name := g.Key + "-headers-middleware"
			h.AddMiddleware(name, &dynconfig.Middleware{
				Headers: &dynconfig.HeadersMiddleware{CustomRequestHeaders: headers},
			})
			middlewares = append(middlewares, name)
		}
	}

	rule := MatchRule(host, g.Path, g.PathMatchType)
	priority := Priority(g.Priority, g.Path, g.PathMatchType)

	entrypoint := b.opts.HTTPEntrypoint
	var tls *dynconfig.RouterTLS
	if g.SSL {
		entrypoint = b.opts.HTTPSEntrypoint
		tls = b.routerTLS(g, host)
	}
	h.Routers[router] = &dynconfig.HTTPRouter{
		EntryPoints: []string{entrypoint},
		Middlewares: middlewares,
		Service:     service,
		Rule:        rule,
		Priority:    priority,
		TLS:         tls,
	}
	if g.SSL {
		h.Routers[router+"-redirect"] = &dynconfig.HTTPRouter{
			EntryPoints: []string{b.opts.HTTPEntrypoint},
			Middlewares: []string{RedirectHTTPSMiddlewareName},
			Service:     service,
			Rule:        rule,
			Priority:    priority,
		}
	}

	svc := dynconfig.NewHTTPService(topology.ResolveBackends(g.Targets, topology.ModeHTTP, b.opts.BackendPolicy))
	if g.StickySession {
		svc.LoadBalancer.Sticky = &dynconfig.HTTPSticky{
			Cookie: &dynconfig.StickyCookie{
				Name:     b.stickyCookieName(),
				Secure:   g.SSL,
				HTTPOnly: true,
			},
		}
	}
	if g.TLSServerName != "" {
		transport := g.Key + "-transport"
		h.AddServersTransport(transport, &dynconfig.ServersTransport{
			ServerName:         g.TLSServerName,
			InsecureSkipVerify: true,
		})
		svc.LoadBalancer.ServersTransport = transport
	}
	h.Services[service] = svc
	b.stats.Emitted++
}

// routerTLS resolves the certificate policy of an HTTPS router. A configured
// domain entry overrides the global resolver and wildcard preference.
func (b *builder) routerTLS(g *topology.ResourceGroup, host string) *dynconfig.RouterTLS {
	if !b.opts.ExposeTLSConfig {
		return &dynconfig.RouterTLS{}
	}
	resolver := b.opts.CertResolver
	preferWildcard := b.opts.PreferWildcardCert
	if d, ok := b.opts.Domains[g.DomainID]; ok {
		if d.CertResolver != "" {
			resolver = d.CertResolver
		}
		preferWildcard = d.PreferWildcardCert
	}

	tls := &dynconfig.RouterTLS{CertResolver: resolver}
	if preferWildcard {
		tls.Domains = []dynconfig.TLSDomain{{Main: WildcardDomain(host, g.Subdomain)}}
	}
	return tls
}

func (b *builder) stickyCookieName() string {
	if b.opts.StickyCookieName == "" {
		return DefaultStickyCookieName
	}
	return b.opts.StickyCookieName
}
