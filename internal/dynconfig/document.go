// Package dynconfig models the edge proxy's dynamic configuration document:
// one optional section per protocol, each holding routers and services plus
// the HTTP-only middlewares and servers transports.
//
// Field names and nesting follow the proxy's file-provider schema so the
// rendered JSON or YAML can be served to it verbatim.
package dynconfig

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Document is a compiled configuration. A document with no sections renders as {}.
type Document struct {
	HTTP *HTTPSection `json:"http,omitempty" yaml:"http,omitempty"`
	TCP  *TCPSection  `json:"tcp,omitempty" yaml:"tcp,omitempty"`
	UDP  *UDPSection  `json:"udp,omitempty" yaml:"udp,omitempty"`
}

// IsEmpty reports whether the document carries no section.
func (d *Document) IsEmpty() bool {
	return d == nil || (d.HTTP == nil && d.TCP == nil && d.UDP == nil)
}

// JSON renders the document. Map keys are sorted, so equal documents render
// to identical bytes. Rule operators such as && are kept unescaped.
func (d *Document) JSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// YAML renders the document in the proxy's YAML file-provider form.
func (d *Document) YAML() ([]byte, error) {
	if d.IsEmpty() {
		return []byte("{}\n"), nil
	}
	return yaml.Marshal(d)
}

// EnsureHTTP returns the HTTP section, creating it on first use.
func (d *Document) EnsureHTTP() *HTTPSection {
	if d.HTTP == nil {
		d.HTTP = &HTTPSection{
			Routers:  make(map[string]*HTTPRouter),
			Services: make(map[string]*HTTPService),
		}
	}
	return d.HTTP
}

// EnsureTCP returns the TCP section, creating it on first use.
func (d *Document) EnsureTCP() *TCPSection {
	if d.TCP == nil {
		d.TCP = &TCPSection{
			Routers:  make(map[string]*TCPRouter),
			Services: make(map[string]*RawService),
		}
	}
	return d.TCP
}

// EnsureUDP returns the UDP section, creating it on first use.
func (d *Document) EnsureUDP() *UDPSection {
	if d.UDP == nil {
		d.UDP = &UDPSection{
			Routers:  make(map[string]*UDPRouter),
			Services: make(map[string]*RawService),
		}
	}
	return d.UDP
}

// Counts summarizes a document for status reporting and metrics.
type Counts struct {
	HTTPRouters  int `json:"http_routers"`
	HTTPServices int `json:"http_services"`
	TCPRouters   int `json:"tcp_routers"`
	UDPRouters   int `json:"udp_routers"`
}

// Count returns per-section router and service totals.
func (d *Document) Count() Counts {
	var c Counts
	if d == nil {
		return c
	}
	if d.HTTP != nil {
		c.HTTPRouters = len(d.HTTP.Routers)
		c.HTTPServices = len(d.HTTP.Services)
	}
	if d.TCP != nil {
		c.TCPRouters = len(d.TCP.Routers)
	}
	if d.UDP != nil {
		c.UDPRouters = len(d.UDP.Routers)
	}
	return c
}
