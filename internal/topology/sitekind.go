package topology

import (
	"net"
	"strconv"
	"strings"

	"github.com/burrowhq/burrow/internal/model"
)

// Mode selects the address form a backend resolves to.
type Mode int

const (
	// ModeHTTP resolves to method://host:port and requires a method.
	ModeHTTP Mode = iota
	// ModeRaw resolves to host:port.
	ModeRaw
)

// Connectivity resolves a target into a backend address for one site
// connectivity model. The set of implementations is closed.
type Connectivity interface {
	resolve(t Target, mode Mode) (string, bool)
}

type directConnectivity struct{}

type meshTunnelConnectivity struct{}

var (
	localConnectivity     Connectivity = directConnectivity{}
	wireguardConnectivity Connectivity = directConnectivity{}
	meshTunnel            Connectivity = meshTunnelConnectivity{}
)

// ConnectivityFor returns the resolver for a site type. Unknown types report false.
func ConnectivityFor(st model.SiteType) (Connectivity, bool) {
	switch st {
	case model.SiteTypeLocal:
		return localConnectivity, true
	case model.SiteTypeWireguard:
		return wireguardConnectivity, true
	case model.SiteTypeNewt:
		return meshTunnel, true
	default:
		return nil, false
	}
}

// local and wireguard sites are reached at the target's own ip and port.
func (directConnectivity) resolve(t Target, mode Mode) (string, bool) {
	if t.IP == "" || t.Port == 0 {
		return "", false
	}
	return formatAddress(mode, t.Method, t.IP, t.Port)
}

// newt sites are reached at the network address of the site subnet and the
// target's internal port.
func (meshTunnelConnectivity) resolve(t Target, mode Mode) (string, bool) {
	if t.InternalPort == 0 || t.Site.Subnet == "" {
		return "", false
	}
	host, _, _ := strings.Cut(t.Site.Subnet, "/")
	if host == "" {
		return "", false
	}
	return formatAddress(mode, t.Method, host, t.InternalPort)
}

func formatAddress(mode Mode, method, host string, port int) (string, bool) {
	hostPort := net.JoinHostPort(host, strconv.Itoa(port))
	if mode == ModeRaw {
		return hostPort, true
	}
	if method == "" {
		return "", false
	}
	return method + "://" + hostPort, true
}
