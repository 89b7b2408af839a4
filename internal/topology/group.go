// Package topology turns the flat snapshot rows into resource groups and
// resolves each group's targets into concrete backend addresses.
package topology

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/burrowhq/burrow/internal/model"
)

const maxSanitizedInput = 50

var (
	unsafeTokenChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)
	dashRuns         = regexp.MustCompile(`-+`)
)

// Sanitize makes s safe for use inside a proxy identifier: input longer than
// 50 characters is truncated, every character outside [A-Za-z0-9-] becomes a
// dash, dash runs collapse and leading/trailing dashes are trimmed.
func Sanitize(s string) string {
	if len(s) > maxSanitizedInput {
		s = s[:maxSanitizedInput]
	}
	s = unsafeTokenChars.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// GroupKey returns the identifier of the (resource, path, match type) unit.
func GroupKey(resourceID int64, path string, matchType model.PathMatchType) string {
	variant := joinNonEmpty("-", Sanitize(path), string(matchType))
	return Sanitize(joinNonEmpty("-", strconv.FormatInt(resourceID, 10), variant))
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// SiteRef is the part of a site a backend address depends on.
type SiteRef struct {
	ID     int64
	Type   model.SiteType
	Online bool
	Subnet string
}

// Target is one backend candidate of a resource group.
type Target struct {
	ID           int64
	IP           string
	Method       string
	Port         int
	InternalPort int
	Enabled      bool
	Site         SiteRef
}

// ResourceGroup is one routable unit: the resource attributes seen on the
// group's first row plus every target sharing its key, in row order.
type ResourceGroup struct {
	Key string

	ResourceID        int64
	// Name is the sanitized resource name.
	Name              string
	FullDomain        string
	Subdomain         string
	DomainID          string
	SSL               bool
	HTTP              bool
	Protocol          string
	ProxyPort         int
	Enabled           bool
	EnableProxy       bool
	StickySession     bool
	TLSServerName     string
	SetHostHeader     string
	Headers           string
	CertificateStatus model.CertificateStatus

	Path          string
	PathMatchType model.PathMatchType
	// Priority is the explicit priority of the first-seen target; 0 when unset.
	Priority int

	Targets []Target
}

// GroupSet is an insertion-ordered mapping from group key to group.
type GroupSet struct {
	order []*ResourceGroup
	byKey map[string]*ResourceGroup
}

// Len returns the number of groups.
func (s *GroupSet) Len() int { return len(s.order) }

// Groups returns the groups in first-seen order.
func (s *GroupSet) Groups() []*ResourceGroup { return s.order }

// Get returns the group stored under key.
func (s *GroupSet) Get(key string) (*ResourceGroup, bool) {
	g, ok := s.byKey[key]
	return g, ok
}

// GroupRows collapses rows into resource groups. When filterOutNamespaceDomains
// is set, rows whose resource belongs to a namespaced domain are dropped first.
// Rows must already be in snapshot order; the first row of each key decides
// the group's resource attributes and priority.
func GroupRows(rows []model.TopologyRow, filterOutNamespaceDomains bool) *GroupSet {
	set := &GroupSet{byKey: make(map[string]*ResourceGroup)}
	for i := range rows {
		row := &rows[i]
		if filterOutNamespaceDomains && row.DomainNamespaceID != "" {
			continue
		}

		key := GroupKey(row.ResourceID, row.Path, row.PathMatchType)
		g, ok := set.byKey[key]
		if !ok {
			g = newResourceGroup(key, row)
			set.byKey[key] = g
			set.order = append(set.order, g)
		}
		g.Targets = append(g.Targets, Target{
			ID:           row.TargetID,
			IP:           row.IP,
			Method:       row.Method,
			Port:         row.Port,
			InternalPort: row.InternalPort,
			Enabled:      row.TargetEnabled,
			Site: SiteRef{
				ID:     row.SiteID,
				Type:   row.SiteType,
				Online: row.SiteOnline,
				Subnet: row.Subnet,
			},
		})
	}
	return set
}

func newResourceGroup(key string, row *model.TopologyRow) *ResourceGroup {
	return &ResourceGroup{
		Key:               key,
		ResourceID:        row.ResourceID,
		Name:              Sanitize(row.ResourceName),
		FullDomain:        row.FullDomain,
		Subdomain:         row.Subdomain,
		DomainID:          row.DomainID,
		SSL:               row.SSL,
		HTTP:              row.HTTP,
		Protocol:          row.Protocol,
		ProxyPort:         row.ProxyPort,
		Enabled:           row.Enabled,
		EnableProxy:       row.EnableProxy,
		StickySession:     row.StickySession,
		TLSServerName:     row.TLSServerName,
		SetHostHeader:     row.SetHostHeader,
		Headers:           row.Headers,
		CertificateStatus: row.CertificateStatus,
		Path:              row.Path,
		PathMatchType:     row.PathMatchType,
		Priority:          row.Priority,
	}
}
