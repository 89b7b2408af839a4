package topology

// Policy tunes backend selection.
type Policy struct {
	// ExcludeOfflineSiblings hides targets on offline sites as soon as any
	// target of the same group sits on an online site.
	ExcludeOfflineSiblings bool
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{ExcludeOfflineSiblings: true}
}

// ResolveBackends maps a group's targets to an ordered, deduplicated address
// list. Targets that are disabled, hidden by the offline-sibling rule, on an
// unknown site type, or missing the fields their site type needs are dropped.
// An empty result is valid.
func ResolveBackends(targets []Target, mode Mode, policy Policy) []string {
	anySiteOnline := false
	for _, t := range targets {
		if t.Site.Online {
			anySiteOnline = true
			break
		}
	}

	addrs := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if !t.Enabled {
			continue
		}
		if policy.ExcludeOfflineSiblings && anySiteOnline && !t.Site.Online {
			continue
		}
		conn, ok := ConnectivityFor(t.Site.Type)
		if !ok {
			continue
		}
		addr, ok := conn.resolve(t, mode)
		if !ok {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	return addrs
}
