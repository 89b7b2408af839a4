package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/burrowhq/burrow/internal/model"
)

// TopologyRepo wraps topology.db. Reads run unlocked; all writes are
// serialized by an internal mutex.
type TopologyRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewTopologyRepo creates a TopologyRepo for an already-migrated connection.
func NewTopologyRepo(db *sql.DB) *TopologyRepo {
	return &TopologyRepo{db: db}
}

const snapshotRowsQuery = `
	SELECT
		r.resource_id, r.name, r.full_domain, r.ssl, r.http, r.proxy_port, r.protocol,
		r.subdomain, r.domain_id, r.enabled, r.sticky_session, r.tls_server_name,
		r.set_host_header, r.enable_proxy, r.headers,
		t.target_id, t.enabled, t.ip, t.method, t.port, t.internal_port,
		thc.hc_health, t.path, t.path_match_type, t.priority,
		s.site_id, s.type, s.online, s.subnet, s.exit_node_id,
		dn.domain_namespace_id,
		c.status
	FROM sites s
	INNER JOIN targets t ON t.site_id = s.site_id
	INNER JOIN resources r ON r.resource_id = t.resource_id
	LEFT JOIN certificates c ON c.domain_id = r.domain_id
	LEFT JOIN target_health_checks thc ON thc.target_id = t.target_id
	LEFT JOIN domain_namespaces dn ON dn.domain_id = r.domain_id
	WHERE t.enabled = 1
	  AND r.enabled = 1
	  AND (thc.hc_health IS NULL OR thc.hc_health != 'unhealthy')
	  AND s.exit_node_id = ?
	  AND s.type IN (%s)
	  AND %s
	ORDER BY t.priority DESC, t.target_id ASC
`

const loginPagesQuery = `
	SELECT lp.login_page_id, lp.full_domain, lp.domain_id, lp.exit_node_id, c.status
	FROM login_pages lp
	LEFT JOIN certificates c ON c.domain_id = lp.domain_id
	WHERE lp.exit_node_id = ?
	ORDER BY lp.login_page_id ASC
`

// ReadSnapshot loads every row relevant to q.ExitNodeID in one read
// transaction, so rows and login pages come from the same database state.
// An empty q.SiteTypes selects nothing.
func (r *TopologyRepo) ReadSnapshot(ctx context.Context, q model.SnapshotQuery) (*model.Snapshot, error) {
	snap := &model.Snapshot{ExitNodeID: q.ExitNodeID}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if len(q.SiteTypes) > 0 {
		rows, err := readTopologyRows(ctx, tx, q)
		if err != nil {
			return nil, err
		}
		snap.Rows = rows
	}

	if q.IncludeLoginPages {
		pages, err := readLoginPages(ctx, tx, q.ExitNodeID)
		if err != nil {
			return nil, err
		}
		snap.LoginPages = pages
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return snap, nil
}

func readTopologyRows(ctx context.Context, tx *sql.Tx, q model.SnapshotQuery) ([]model.TopologyRow, error) {
	placeholders := make([]string, len(q.SiteTypes))
	args := make([]any, 0, len(q.SiteTypes)+1)
	args = append(args, q.ExitNodeID)
	for i, st := range q.SiteTypes {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	httpClause := "r.http = 1"
	if q.IncludeRawResources {
		httpClause = "r.http IS NOT NULL"
	}
	query := fmt.Sprintf(snapshotRowsQuery, strings.Join(placeholders, ", "), httpClause)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshot rows: %w", err)
	}
	defer rows.Close()

	var result []model.TopologyRow
	for rows.Next() {
		var (
			row                                                 model.TopologyRow
			fullDomain, subdomain, domainID, tlsServerName      sql.NullString
			setHostHeader, headers, ip, method, health, path    sql.NullString
			matchType, subnet, namespaceID, certStatus          sql.NullString
			proxyPort, port, internalPort, priority, exitNodeID sql.NullInt64
			siteType                                            string
		)
		if err := rows.Scan(
			&row.ResourceID, &row.ResourceName, &fullDomain, &row.SSL, &row.HTTP, &proxyPort, &row.Protocol,
			&subdomain, &domainID, &row.Enabled, &row.StickySession, &tlsServerName,
			&setHostHeader, &row.EnableProxy, &headers,
			&row.TargetID, &row.TargetEnabled, &ip, &method, &port, &internalPort,
			&health, &path, &matchType, &priority,
			&row.SiteID, &siteType, &row.SiteOnline, &subnet, &exitNodeID,
			&namespaceID,
			&certStatus,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		row.FullDomain = fullDomain.String
		row.Subdomain = subdomain.String
		row.DomainID = domainID.String
		row.TLSServerName = tlsServerName.String
		row.SetHostHeader = setHostHeader.String
		row.Headers = headers.String
		row.ProxyPort = int(proxyPort.Int64)
		row.IP = ip.String
		row.Method = method.String
		row.Port = int(port.Int64)
		row.InternalPort = int(internalPort.Int64)
		row.Health = model.HealthStatus(health.String)
		row.Path = path.String
		row.PathMatchType = model.PathMatchType(matchType.String)
		row.Priority = int(priority.Int64)
		row.SiteType = model.SiteType(siteType)
		row.Subnet = subnet.String
		row.ExitNodeID = exitNodeID.Int64
		row.DomainNamespaceID = namespaceID.String
		row.CertificateStatus = model.CertificateStatus(certStatus.String)
		result = append(result, row)
	}
	return result, rows.Err()
}

func readLoginPages(ctx context.Context, tx *sql.Tx, exitNodeID int64) ([]model.LoginPageRow, error) {
	rows, err := tx.QueryContext(ctx, loginPagesQuery, exitNodeID)
	if err != nil {
		return nil, fmt.Errorf("query login pages: %w", err)
	}
	defer rows.Close()

	var result []model.LoginPageRow
	for rows.Next() {
		var (
			lp                               model.LoginPageRow
			fullDomain, domainID, certStatus sql.NullString
			nodeID                           sql.NullInt64
		)
		if err := rows.Scan(&lp.LoginPageID, &fullDomain, &domainID, &nodeID, &certStatus); err != nil {
			return nil, fmt.Errorf("scan login page: %w", err)
		}
		lp.FullDomain = fullDomain.String
		lp.DomainID = domainID.String
		lp.ExitNodeID = nodeID.Int64
		lp.CertificateStatus = model.CertificateStatus(certStatus.String)
		result = append(result, lp)
	}
	return result, rows.Err()
}

// --- exit_nodes ---

// GetExitNode returns the exit node with the given id, or ErrNotFound.
func (r *TopologyRepo) GetExitNode(ctx context.Context, id int64) (*model.ExitNode, error) {
	var (
		n           model.ExitNode
		reachableAt sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT exit_node_id, name, reachable_at FROM exit_nodes WHERE exit_node_id = ?", id,
	).Scan(&n.ID, &n.Name, &reachableAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exit node %d: %w", id, err)
	}
	n.ReachableAt = reachableAt.String
	return &n, nil
}

// ListExitNodes returns all exit nodes ordered by id.
func (r *TopologyRepo) ListExitNodes(ctx context.Context) ([]model.ExitNode, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT exit_node_id, name, reachable_at FROM exit_nodes ORDER BY exit_node_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ExitNode
	for rows.Next() {
		var (
			n           model.ExitNode
			reachableAt sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Name, &reachableAt); err != nil {
			return nil, err
		}
		n.ReachableAt = reachableAt.String
		result = append(result, n)
	}
	return result, rows.Err()
}

// UpsertExitNode inserts or updates an exit node by id.
func (r *TopologyRepo) UpsertExitNode(n model.ExitNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO exit_nodes (exit_node_id, name, reachable_at)
		VALUES (?, ?, ?)
		ON CONFLICT(exit_node_id) DO UPDATE SET
			name         = excluded.name,
			reachable_at = excluded.reachable_at
	`, n.ID, n.Name, nullString(n.ReachableAt))
	return err
}

// --- sites ---

// UpsertSite inserts or updates a site by id. ExitNodeID 0 detaches the site.
func (r *TopologyRepo) UpsertSite(s model.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO sites (site_id, name, type, online, subnet, exit_node_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			name         = excluded.name,
			type         = excluded.type,
			online       = excluded.online,
			subnet       = excluded.subnet,
			exit_node_id = excluded.exit_node_id
	`, s.ID, s.Name, string(s.Type), s.Online, nullString(s.Subnet), nullInt64(s.ExitNodeID))
	return err
}

// --- resources ---

// UpsertResource inserts or updates a resource by id.
func (r *TopologyRepo) UpsertResource(res model.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	protocol := res.Protocol
	if protocol == "" {
		protocol = "tcp"
	}
	_, err := r.db.Exec(`
		INSERT INTO resources (resource_id, name, full_domain, subdomain, domain_id, ssl, http,
		                       protocol, proxy_port, enabled, enable_proxy, sticky_session,
		                       tls_server_name, set_host_header, headers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(resource_id) DO UPDATE SET
			name            = excluded.name,
			full_domain     = excluded.full_domain,
			subdomain       = excluded.subdomain,
			domain_id       = excluded.domain_id,
			ssl             = excluded.ssl,
			http            = excluded.http,
			protocol        = excluded.protocol,
			proxy_port      = excluded.proxy_port,
			enabled         = excluded.enabled,
			enable_proxy    = excluded.enable_proxy,
			sticky_session  = excluded.sticky_session,
			tls_server_name = excluded.tls_server_name,
			set_host_header = excluded.set_host_header,
			headers         = excluded.headers
	`, res.ID, res.Name, nullString(res.FullDomain), nullString(res.Subdomain), nullString(res.DomainID),
		res.SSL, res.HTTP, protocol, nullInt64(int64(res.ProxyPort)), res.Enabled, res.EnableProxy,
		res.StickySession, nullString(res.TLSServerName), nullString(res.SetHostHeader), nullString(res.Headers))
	return err
}

// --- targets ---

// UpsertTarget inserts or updates a target by id. Zero ports and priority are stored as NULL.
func (r *TopologyRepo) UpsertTarget(t model.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO targets (target_id, resource_id, site_id, ip, method, port, internal_port,
		                     enabled, path, path_match_type, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_id) DO UPDATE SET
			resource_id     = excluded.resource_id,
			site_id         = excluded.site_id,
			ip              = excluded.ip,
			method          = excluded.method,
			port            = excluded.port,
			internal_port   = excluded.internal_port,
			enabled         = excluded.enabled,
			path            = excluded.path,
			path_match_type = excluded.path_match_type,
			priority        = excluded.priority
	`, t.ID, t.ResourceID, t.SiteID, nullString(t.IP), nullString(t.Method),
		nullInt64(int64(t.Port)), nullInt64(int64(t.InternalPort)), t.Enabled,
		nullString(t.Path), nullString(string(t.PathMatchType)), nullInt64(int64(t.Priority)))
	return err
}

// SetTargetHealth records the health verdict of a target.
func (r *TopologyRepo) SetTargetHealth(hc model.TargetHealthCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO target_health_checks (target_id, hc_health)
		VALUES (?, ?)
		ON CONFLICT(target_id) DO UPDATE SET
			hc_health = excluded.hc_health
	`, hc.TargetID, nullString(string(hc.Health)))
	return err
}

// --- certificates ---

// UpsertCertificate inserts or updates a certificate by domain.
func (r *TopologyRepo) UpsertCertificate(c model.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := c.Status
	if status == "" {
		status = model.CertificatePending
	}
	_, err := r.db.Exec(`
		INSERT INTO certificates (domain, domain_id, status)
		VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			domain_id = excluded.domain_id,
			status    = excluded.status
	`, c.Domain, nullString(c.DomainID), string(status))
	return err
}

// --- domain_namespaces ---

// UpsertDomainNamespace marks a domain as cloud-managed.
func (r *TopologyRepo) UpsertDomainNamespace(ns model.DomainNamespace) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO domain_namespaces (domain_namespace_id, domain_id)
		VALUES (?, ?)
		ON CONFLICT(domain_namespace_id) DO UPDATE SET
			domain_id = excluded.domain_id
	`, ns.ID, nullString(ns.DomainID))
	return err
}

// --- login_pages ---

// UpsertLoginPage inserts or updates a login page by id.
func (r *TopologyRepo) UpsertLoginPage(lp model.LoginPage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO login_pages (login_page_id, subdomain, full_domain, exit_node_id, domain_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(login_page_id) DO UPDATE SET
			subdomain    = excluded.subdomain,
			full_domain  = excluded.full_domain,
			exit_node_id = excluded.exit_node_id,
			domain_id    = excluded.domain_id
	`, lp.ID, nullString(lp.Subdomain), nullString(lp.FullDomain), nullInt64(lp.ExitNodeID), nullString(lp.DomainID))
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
