// Package model defines the topology entities and the flat snapshot rows
// shared between the persistence layer and the compiler.
package model

// SiteType is the connectivity model of a site.
type SiteType string

const (
	SiteTypeLocal     SiteType = "local"
	SiteTypeWireguard SiteType = "wireguard"
	SiteTypeNewt      SiteType = "newt"
)

// AllSiteTypes lists every connectivity model in a stable order.
var AllSiteTypes = []SiteType{SiteTypeLocal, SiteTypeWireguard, SiteTypeNewt}

// IsValid reports whether t is a known connectivity model.
func (t SiteType) IsValid() bool {
	switch t {
	case SiteTypeLocal, SiteTypeWireguard, SiteTypeNewt:
		return true
	default:
		return false
	}
}

// PathMatchType selects how a resource path is matched by the edge proxy.
type PathMatchType string

const (
	PathMatchNone   PathMatchType = ""
	PathMatchExact  PathMatchType = "exact"
	PathMatchPrefix PathMatchType = "prefix"
	PathMatchRegex  PathMatchType = "regex"
)

// HealthStatus is the verdict of a target health check.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// CertificateStatus is the lifecycle state of a domain certificate.
type CertificateStatus string

const (
	CertificatePending CertificateStatus = "pending"
	CertificateValid   CertificateStatus = "valid"
	CertificateError   CertificateStatus = "error"
	CertificateExpired CertificateStatus = "expired"
)

// ExitNode is a gateway process terminating the mesh.
type ExitNode struct {
	ID          int64  `json:"exit_node_id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	ReachableAt string `json:"reachable_at" yaml:"reachable_at"`
}

// Site is a connectivity endpoint bound to an exit node.
type Site struct {
	ID         int64    `json:"site_id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Type       SiteType `json:"type" yaml:"type"`
	Online     bool     `json:"online" yaml:"online"`
	Subnet     string   `json:"subnet" yaml:"subnet"`
	ExitNodeID int64    `json:"exit_node_id" yaml:"exit_node_id"`
}

// Resource is a published endpoint.
// Headers holds the serialized [{"name","value"}] list exactly as stored.
type Resource struct {
	ID            int64  `json:"resource_id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	FullDomain    string `json:"full_domain" yaml:"full_domain"`
	Subdomain     string `json:"subdomain" yaml:"subdomain"`
	DomainID      string `json:"domain_id" yaml:"domain_id"`
	SSL           bool   `json:"ssl" yaml:"ssl"`
	HTTP          bool   `json:"http" yaml:"http"`
	Protocol      string `json:"protocol" yaml:"protocol"`
	ProxyPort     int    `json:"proxy_port" yaml:"proxy_port"`
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	EnableProxy   bool   `json:"enable_proxy" yaml:"enable_proxy"`
	StickySession bool   `json:"sticky_session" yaml:"sticky_session"`
	TLSServerName string `json:"tls_server_name" yaml:"tls_server_name"`
	SetHostHeader string `json:"set_host_header" yaml:"set_host_header"`
	Headers       string `json:"headers" yaml:"headers"`
}

// Target is one backend instance of a resource. Priority 0 means unset.
type Target struct {
	ID            int64         `json:"target_id" yaml:"id"`
	ResourceID    int64         `json:"resource_id" yaml:"resource_id"`
	SiteID        int64         `json:"site_id" yaml:"site_id"`
	IP            string        `json:"ip" yaml:"ip"`
	Method        string        `json:"method" yaml:"method"`
	Port          int           `json:"port" yaml:"port"`
	InternalPort  int           `json:"internal_port" yaml:"internal_port"`
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	Path          string        `json:"path" yaml:"path"`
	PathMatchType PathMatchType `json:"path_match_type" yaml:"path_match_type"`
	Priority      int           `json:"priority" yaml:"priority"`
}

// TargetHealthCheck carries the health verdict of one target.
type TargetHealthCheck struct {
	TargetID int64        `json:"target_id" yaml:"target_id"`
	Health   HealthStatus `json:"health" yaml:"health"`
}

// Certificate is the certificate state of one domain.
type Certificate struct {
	ID       int64             `json:"cert_id" yaml:"id"`
	Domain   string            `json:"domain" yaml:"domain"`
	DomainID string            `json:"domain_id" yaml:"domain_id"`
	Status   CertificateStatus `json:"status" yaml:"status"`
}

// DomainNamespace marks a domain as cloud-managed.
type DomainNamespace struct {
	ID       string `json:"domain_namespace_id" yaml:"id"`
	DomainID string `json:"domain_id" yaml:"domain_id"`
}

// LoginPage is an exit-node-scoped landing page for authentication traffic.
type LoginPage struct {
	ID         int64  `json:"login_page_id" yaml:"id"`
	Subdomain  string `json:"subdomain" yaml:"subdomain"`
	FullDomain string `json:"full_domain" yaml:"full_domain"`
	ExitNodeID int64  `json:"exit_node_id" yaml:"exit_node_id"`
	DomainID   string `json:"domain_id" yaml:"domain_id"`
}

// TopologyRow is one joined (site, target, resource, certificate,
// health check, domain namespace) tuple of a snapshot.
// Empty strings and zero ints stand for NULL columns.
type TopologyRow struct {
	ResourceID    int64
	ResourceName  string
	FullDomain    string
	SSL           bool
	HTTP          bool
	ProxyPort     int
	Protocol      string
	Subdomain     string
	DomainID      string
	Enabled       bool
	StickySession bool
	TLSServerName string
	SetHostHeader string
	EnableProxy   bool
	Headers       string

	TargetID      int64
	TargetEnabled bool
	IP            string
	Method        string
	Port          int
	InternalPort  int
	Health        HealthStatus
	Path          string
	PathMatchType PathMatchType
	Priority      int

	SiteID     int64
	SiteType   SiteType
	SiteOnline bool
	Subnet     string
	ExitNodeID int64

	DomainNamespaceID string

	CertificateStatus CertificateStatus
}

// LoginPageRow is a login page joined with its certificate state.
type LoginPageRow struct {
	LoginPageID       int64
	FullDomain        string
	DomainID          string
	ExitNodeID        int64
	CertificateStatus CertificateStatus
}

// SnapshotQuery selects the rows relevant to one exit node.
type SnapshotQuery struct {
	ExitNodeID int64
	SiteTypes  []SiteType
	// IncludeRawResources also returns non-HTTP resources.
	IncludeRawResources bool
	// IncludeLoginPages also loads the exit node's login pages.
	IncludeLoginPages bool
}

// Snapshot is the immutable topology view one compilation works on.
// Rows are ordered by descending target priority, then ascending target id.
type Snapshot struct {
	ExitNodeID int64
	Rows       []TopologyRow
	LoginPages []LoginPageRow
}
