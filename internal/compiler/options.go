package compiler

import (
	"github.com/burrowhq/burrow/internal/model"
	"github.com/burrowhq/burrow/internal/topology"
)

// Fixed names shared by every emitted document.
const (
	AuthMiddlewareName           = "badger"
	RedirectHTTPSMiddlewareName  = "redirect-to-https"
	RedirectToRootMiddlewareName = "redirect-to-root"
	LandingServiceName           = "landing-service"
	DefaultStickyCookieName      = "p_sticky"
)

// DomainOptions overrides certificate policy for one domain id.
type DomainOptions struct {
	CertResolver       string
	PreferWildcardCert bool
}

// Options is the deployment configuration a compilation runs under.
// An Options value is treated as immutable once handed to a Compiler.
type Options struct {
	HTTPEntrypoint        string
	HTTPSEntrypoint       string
	AdditionalMiddlewares []string

	CertResolver       string
	PreferWildcardCert bool
	Domains            map[string]DomainOptions
	// ExposeTLSConfig emits certResolver/domains on HTTPS routers. When false
	// routers carry an empty TLS block and certificates are managed outside.
	ExposeTLSConfig bool

	StickyCookieName  string
	LandingServiceURL string

	// AllowRawResources includes TCP/UDP resources in the snapshot.
	AllowRawResources bool
	BackendPolicy     topology.Policy

	// Debug logs every skipped resource and login page.
	Debug bool
}

// DefaultOptions returns the options of an unconfigured deployment.
func DefaultOptions() Options {
	return Options{
		HTTPEntrypoint:    "web",
		HTTPSEntrypoint:   "websecure",
		CertResolver:      "letsencrypt",
		ExposeTLSConfig:   true,
		StickyCookieName:  DefaultStickyCookieName,
		LandingServiceURL: "http://pangolin:3002",
		BackendPolicy:     topology.DefaultPolicy(),
	}
}

// Params selects what one compilation covers.
type Params struct {
	ExitNodeID                int64
	SiteTypes                 []model.SiteType
	FilterOutNamespaceDomains bool
	GenerateLoginPageRouters  bool
}

// Stats summarizes one compilation.
type Stats struct {
	Groups     int `json:"groups"`
	Emitted    int `json:"emitted"`
	Skipped    int `json:"skipped"`
	LoginPages int `json:"login_pages"`
}
