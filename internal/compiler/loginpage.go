package compiler

import (
	"log"
	"strconv"

	"github.com/burrowhq/burrow/internal/dynconfig"
	"github.com/burrowhq/burrow/internal/model"
)

// Path patterns of the authentication frontend. They must match its routes
// byte for byte.
const (
	loginPathResourceAccess = "PathRegexp(`^/auth/resource/[^/]+$`)"
	loginPathOIDCCallback   = "PathRegexp(`^/auth/idp/[0-9]+/oidc/callback`)"
	loginPathAssets         = "PathPrefix(`/_next`)"
	loginPathOrgSelect      = "Path(`/auth/org`)"
	loginPathDevAssets      = "PathRegexp(`^/__nextjs*`)"
)

const (
	loginAuthPriority     = 203
	loginCatchAllPriority = 202
	loginRedirectPriority = 201
)

// addLoginPages emits three routers per publishable login page, all bound to
// the shared landing service. Pages without a domain or a valid certificate
// are skipped.
func (b *builder) addLoginPages(pages []model.LoginPageRow) {
	for _, lp := range pages {
		if lp.DomainID == "" || lp.FullDomain == "" || lp.CertificateStatus != model.CertificateValid {
			if b.opts.Debug {
				log.Printf("[compiler] skip login page %d: domain=%q certificate=%q",
					lp.LoginPageID, lp.FullDomain, lp.CertificateStatus)
			}
			continue
		}

		h := b.doc.EnsureHTTP()
		if _, ok := h.Services[LandingServiceName]; !ok {
			h.Services[LandingServiceName] = dynconfig.NewHTTPService([]string{b.opts.LandingServiceURL})
		}

		host := asciiHost(lp.FullDomain)
		hostRule := "Host(`" + host + "`)"
		authRule := hostRule + " && (" + loginPathResourceAccess + " || " + loginPathOIDCCallback +
			" || " + loginPathAssets + " || " + loginPathOrgSelect + " || " + loginPathDevAssets + ")"
		prefix := "loginpage-" + strconv.FormatInt(lp.LoginPageID, 10)

		h.Routers[prefix+"-router"] = &dynconfig.HTTPRouter{
			EntryPoints: []string{b.opts.HTTPSEntrypoint},
			Service:     LandingServiceName,
			Rule:        authRule,
			Priority:    loginAuthPriority,
			TLS:         &dynconfig.RouterTLS{},
		}
		h.Routers[prefix+"-catchall"] = &dynconfig.HTTPRouter{
			EntryPoints: []string{b.opts.HTTPSEntrypoint},
			Middlewares: []string{RedirectToRootMiddlewareName},
			Service:     LandingServiceName,
			Rule:        hostRule,
			Priority:    loginCatchAllPriority,
			TLS:         &dynconfig.RouterTLS{},
		}
		h.Routers[prefix+"-redirect"] = &dynconfig.HTTPRouter{
			EntryPoints: []string{b.opts.HTTPEntrypoint},
			Middlewares: []string{RedirectHTTPSMiddlewareName},
			Service:     LandingServiceName,
			Rule:        hostRule,
			Priority:    loginRedirectPriority,
		}
		b.stats.LoginPages++
	}
}
