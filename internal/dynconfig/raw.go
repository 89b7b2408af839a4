package dynconfig

// TCPSection holds raw TCP routing. Both maps are always rendered.
type TCPSection struct {
	Routers  map[string]*TCPRouter  `json:"routers" yaml:"routers"`
	Services map[string]*RawService `json:"services" yaml:"services"`
}

// UDPSection holds raw UDP routing. Both maps are always rendered.
type UDPSection struct {
	Routers  map[string]*UDPRouter  `json:"routers" yaml:"routers"`
	Services map[string]*RawService `json:"services" yaml:"services"`
}

// TCPRouter binds an entrypoint to a service. Rule is an SNI matcher.
type TCPRouter struct {
	EntryPoints []string `json:"entryPoints" yaml:"entryPoints"`
	Service     string   `json:"service" yaml:"service"`
	Rule        string   `json:"rule,omitempty" yaml:"rule,omitempty"`
}

// UDPRouter binds an entrypoint to a service; UDP has no match rule.
type UDPRouter struct {
	EntryPoints []string `json:"entryPoints" yaml:"entryPoints"`
	Service     string   `json:"service" yaml:"service"`
}

// RawService balances over host:port servers.
type RawService struct {
	LoadBalancer *RawLoadBalancer `json:"loadBalancer" yaml:"loadBalancer"`
}

// RawLoadBalancer lists backend addresses. Servers is never nil.
type RawLoadBalancer struct {
	Servers []AddressServer `json:"servers" yaml:"servers"`
	Sticky  *RawSticky      `json:"sticky,omitempty" yaml:"sticky,omitempty"`
}

// NewRawService builds a load-balanced service over host:port addresses.
func NewRawService(addrs []string) *RawService {
	servers := make([]AddressServer, 0, len(addrs))
	for _, a := range addrs {
		servers = append(servers, AddressServer{Address: a})
	}
	return &RawService{LoadBalancer: &RawLoadBalancer{Servers: servers}}
}

// AddressServer is one raw backend.
type AddressServer struct {
	Address string `json:"address" yaml:"address"`
}

// RawSticky pins clients to a backend by source address.
type RawSticky struct {
	IPStrategy *IPStrategy `json:"ipStrategy" yaml:"ipStrategy"`
}

// IPStrategy selects which client address affinity is computed from.
type IPStrategy struct {
	Depth      int  `json:"depth" yaml:"depth"`
	SourcePort bool `json:"sourcePort" yaml:"sourcePort"`
}
