package dynconfig

// HTTPSection holds HTTP routing. Routers and services are always rendered;
// middlewares and transports only when present.
type HTTPSection struct {
	Routers           map[string]*HTTPRouter       `json:"routers" yaml:"routers"`
	Services          map[string]*HTTPService      `json:"services" yaml:"services"`
	Middlewares       map[string]*Middleware       `json:"middlewares,omitempty" yaml:"middlewares,omitempty"`
	ServersTransports map[string]*ServersTransport `json:"serversTransports,omitempty" yaml:"serversTransports,omitempty"`
}

// AddMiddleware stores m under name, creating the middleware map on first use.
func (s *HTTPSection) AddMiddleware(name string, m *Middleware) {
	if s.Middlewares == nil {
		s.Middlewares = make(map[string]*Middleware)
	}
	s.Middlewares[name] = m
}

// AddServersTransport stores t under name, creating the transport map on first use.
func (s *HTTPSection) AddServersTransport(name string, t *ServersTransport) {
	if s.ServersTransports == nil {
		s.ServersTransports = make(map[string]*ServersTransport)
	}
	s.ServersTransports[name] = t
}

// HTTPRouter matches requests on an entrypoint and hands them to a service.
type HTTPRouter struct {
	EntryPoints []string   `json:"entryPoints" yaml:"entryPoints"`
	Middlewares []string   `json:"middlewares,omitempty" yaml:"middlewares,omitempty"`
	Service     string     `json:"service" yaml:"service"`
	Rule        string     `json:"rule" yaml:"rule"`
	Priority    int        `json:"priority" yaml:"priority"`
	TLS         *RouterTLS `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// RouterTLS enables TLS on a router. The zero value renders as {} and leaves
// certificate selection to the proxy.
type RouterTLS struct {
	CertResolver string      `json:"certResolver,omitempty" yaml:"certResolver,omitempty"`
	Domains      []TLSDomain `json:"domains,omitempty" yaml:"domains,omitempty"`
}

// TLSDomain requests a certificate for Main.
type TLSDomain struct {
	Main string `json:"main" yaml:"main"`
}

// HTTPService balances over URL servers.
type HTTPService struct {
	LoadBalancer *HTTPLoadBalancer `json:"loadBalancer" yaml:"loadBalancer"`
}

// HTTPLoadBalancer lists backend URLs. Servers is never nil so that an empty
// backend set renders as [].
type HTTPLoadBalancer struct {
	Servers          []URLServer `json:"servers" yaml:"servers"`
	Sticky           *HTTPSticky `json:"sticky,omitempty" yaml:"sticky,omitempty"`
	ServersTransport string      `json:"serversTransport,omitempty" yaml:"serversTransport,omitempty"`
}

// NewHTTPService builds a load-balanced service over urls.
func NewHTTPService(urls []string) *HTTPService {
	servers := make([]URLServer, 0, len(urls))
	for _, u := range urls {
		servers = append(servers, URLServer{URL: u})
	}
	return &HTTPService{LoadBalancer: &HTTPLoadBalancer{Servers: servers}}
}

// URLServer is one HTTP backend.
type URLServer struct {
	URL string `json:"url" yaml:"url"`
}

// HTTPSticky pins clients to a backend with a cookie.
type HTTPSticky struct {
	Cookie *StickyCookie `json:"cookie" yaml:"cookie"`
}

// StickyCookie configures the affinity cookie.
type StickyCookie struct {
	Name     string `json:"name" yaml:"name"`
	Secure   bool   `json:"secure" yaml:"secure"`
	HTTPOnly bool   `json:"httpOnly" yaml:"httpOnly"`
}

// Middleware is a tagged union: exactly one field is set.
type Middleware struct {
	RedirectScheme *RedirectScheme    `json:"redirectScheme,omitempty" yaml:"redirectScheme,omitempty"`
	RedirectRegex  *RedirectRegex     `json:"redirectRegex,omitempty" yaml:"redirectRegex,omitempty"`
	Headers        *HeadersMiddleware `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// RedirectScheme redirects to another scheme.
type RedirectScheme struct {
	Scheme string `json:"scheme" yaml:"scheme"`
}

// RedirectRegex rewrites the request URL and redirects.
type RedirectRegex struct {
	Regex       string `json:"regex" yaml:"regex"`
	Replacement string `json:"replacement" yaml:"replacement"`
	Permanent   bool   `json:"permanent" yaml:"permanent"`
}

// HeadersMiddleware sets request headers before forwarding.
type HeadersMiddleware struct {
	CustomRequestHeaders map[string]string `json:"customRequestHeaders" yaml:"customRequestHeaders"`
}

// ServersTransport customizes the TLS handshake towards backends.
type ServersTransport struct {
	ServerName         string `json:"serverName" yaml:"serverName"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify" yaml:"insecureSkipVerify"`
}
