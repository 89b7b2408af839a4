package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/burrowhq/burrow/internal/model"
)

// helper: create a migrated topology.db in a temp dir.
func newTestTopologyRepo(t *testing.T) *TopologyRepo {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenDB(filepath.Join(dir, "topology.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := MigrateTopologyDB(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTopologyRepo(db)
}

func mustSeed(t *testing.T, repo *TopologyRepo, seed *Seed) {
	t.Helper()
	if err := repo.ApplySeed(seed); err != nil {
		t.Fatalf("ApplySeed: %v", err)
	}
}

func baseSeed() *Seed {
	return &Seed{
		ExitNodes: []model.ExitNode{
			{ID: 1, Name: "edge-1", ReachableAt: "http://gerbil-1:3003"},
			{ID: 2, Name: "edge-2"},
		},
		Sites: []model.Site{
			{ID: 10, Name: "home", Type: model.SiteTypeNewt, Online: true, Subnet: "100.89.1.0/30", ExitNodeID: 1},
			{ID: 11, Name: "dc", Type: model.SiteTypeLocal, Online: true, ExitNodeID: 1},
			{ID: 12, Name: "other", Type: model.SiteTypeLocal, Online: true, ExitNodeID: 2},
		},
		Resources: []model.Resource{
			{ID: 100, Name: "app", FullDomain: "app.example.com", Subdomain: "app", DomainID: "d1",
				SSL: true, HTTP: true, Protocol: "tcp", Enabled: true, EnableProxy: true},
			{ID: 101, Name: "ssh", HTTP: false, Protocol: "tcp", ProxyPort: 2222, Enabled: true, EnableProxy: true},
			{ID: 102, Name: "off", FullDomain: "off.example.com", HTTP: true, Enabled: false, EnableProxy: true},
		},
		Targets: []model.Target{
			{ID: 1000, ResourceID: 100, SiteID: 10, Method: "http", InternalPort: 8080, Enabled: true, Priority: 50},
			{ID: 1001, ResourceID: 100, SiteID: 11, IP: "10.0.0.5", Method: "http", Port: 80, Enabled: true, Priority: 200},
			{ID: 1002, ResourceID: 100, SiteID: 11, IP: "10.0.0.6", Method: "http", Port: 80, Enabled: false},
			{ID: 1003, ResourceID: 101, SiteID: 11, IP: "10.0.0.7", Port: 22, Enabled: true},
			{ID: 1004, ResourceID: 102, SiteID: 11, IP: "10.0.0.8", Method: "http", Port: 80, Enabled: true},
			{ID: 1005, ResourceID: 100, SiteID: 12, IP: "10.9.0.1", Method: "http", Port: 80, Enabled: true},
		},
		Certificates: []model.Certificate{
			{Domain: "app.example.com", DomainID: "d1", Status: model.CertificateValid},
		},
	}
}

func targetIDs(rows []model.TopologyRow) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.TargetID)
	}
	return ids
}

func TestTopologyRepo_ReadSnapshot_FiltersAndOrders(t *testing.T) {
	repo := newTestTopologyRepo(t)
	mustSeed(t, repo, baseSeed())

	snap, err := repo.ReadSnapshot(context.Background(), model.SnapshotQuery{
		ExitNodeID: 1,
		SiteTypes:  model.AllSiteTypes,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Disabled target, disabled resource, raw resource and other exit node are excluded.
	// Priority DESC: 1001 (200) before 1000 (50).
	if got, want := targetIDs(snap.Rows), []int64{1001, 1000}; !reflect.DeepEqual(got, want) {
		t.Fatalf("target ids: got %v, want %v", got, want)
	}
	row := snap.Rows[0]
	if row.FullDomain != "app.example.com" || !row.SSL || row.CertificateStatus != model.CertificateValid {
		t.Fatalf("unexpected resource columns: %+v", row)
	}
	if snap.Rows[1].Subnet != "100.89.1.0/30" || snap.Rows[1].SiteType != model.SiteTypeNewt {
		t.Fatalf("unexpected site columns: %+v", snap.Rows[1])
	}
}

func TestTopologyRepo_ReadSnapshot_RawResources(t *testing.T) {
	repo := newTestTopologyRepo(t)
	mustSeed(t, repo, baseSeed())

	snap, err := repo.ReadSnapshot(context.Background(), model.SnapshotQuery{
		ExitNodeID:          1,
		SiteTypes:           []model.SiteType{model.SiteTypeLocal},
		IncludeRawResources: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	// NULL priorities sort last under DESC in SQLite.
	if got, want := targetIDs(snap.Rows), []int64{1001, 1003}; !reflect.DeepEqual(got, want) {
		t.Fatalf("target ids: got %v, want %v", got, want)
	}
	raw := snap.Rows[1]
	if raw.HTTP || raw.ProxyPort != 2222 || raw.Protocol != "tcp" {
		t.Fatalf("unexpected raw row: %+v", raw)
	}
	if raw.Priority != 0 || raw.Method != "" {
		t.Fatalf("NULL columns should map to zero values: %+v", raw)
	}
}

func TestTopologyRepo_ReadSnapshot_SiteTypeFilter(t *testing.T) {
	repo := newTestTopologyRepo(t)
	mustSeed(t, repo, baseSeed())

	snap, err := repo.ReadSnapshot(context.Background(), model.SnapshotQuery{
		ExitNodeID: 1,
		SiteTypes:  []model.SiteType{model.SiteTypeNewt},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := targetIDs(snap.Rows), []int64{1000}; !reflect.DeepEqual(got, want) {
		t.Fatalf("target ids: got %v, want %v", got, want)
	}

	empty, err := repo.ReadSnapshot(context.Background(), model.SnapshotQuery{ExitNodeID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Rows) != 0 {
		t.Fatalf("empty site types should select nothing, got %d rows", len(empty.Rows))
	}
}

func TestTopologyRepo_ReadSnapshot_HealthFilter(t *testing.T) {
	repo := newTestTopologyRepo(t)
	mustSeed(t, repo, baseSeed())

	if err := repo.SetTargetHealth(model.TargetHealthCheck{TargetID: 1001, Health: model.HealthUnhealthy}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetTargetHealth(model.TargetHealthCheck{TargetID: 1000, Health: model.HealthUnknown}); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.ReadSnapshot(context.Background(), model.SnapshotQuery{
		ExitNodeID: 1,
		SiteTypes:  model.AllSiteTypes,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := targetIDs(snap.Rows), []int64{1000}; !reflect.DeepEqual(got, want) {
		t.Fatalf("target ids: got %v, want %v", got, want)
	}
	if snap.Rows[0].Health != model.HealthUnknown {
		t.Fatalf("health: got %q", snap.Rows[0].Health)
	}

	// Recovery flips the target back in.
	if err := repo.SetTargetHealth(model.TargetHealthCheck{TargetID: 1001, Health: model.HealthHealthy}); err != nil {
		t.Fatal(err)
	}
	snap, err = repo.ReadSnapshot(context.Background(), model.SnapshotQuery{
		ExitNodeID: 1,
		SiteTypes:  model.AllSiteTypes,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Rows) != 2 {
		t.Fatalf("expected 2 rows after recovery, got %d", len(snap.Rows))
	}
}

func TestTopologyRepo_ReadSnapshot_DomainNamespace(t *testing.T) {
	repo := newTestTopologyRepo(t)
	mustSeed(t, repo, baseSeed())
	if err := repo.UpsertDomainNamespace(model.DomainNamespace{ID: "ns-1", DomainID: "d1"}); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.ReadSnapshot(context.Background(), model.SnapshotQuery{
		ExitNodeID: 1,
		SiteTypes:  model.AllSiteTypes,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range snap.Rows {
		if row.DomainNamespaceID != "ns-1" {
			t.Fatalf("row %d: namespace id %q", row.TargetID, row.DomainNamespaceID)
		}
	}
}

func TestTopologyRepo_ReadSnapshot_LoginPages(t *testing.T) {
	repo := newTestTopologyRepo(t)
	seed := baseSeed()
	seed.LoginPages = []model.LoginPage{
		{ID: 7, Subdomain: "login", FullDomain: "login.example.com", ExitNodeID: 1, DomainID: "d2"},
		{ID: 8, FullDomain: "elsewhere.example.com", ExitNodeID: 2, DomainID: "d3"},
	}
	seed.Certificates = append(seed.Certificates,
		model.Certificate{Domain: "login.example.com", DomainID: "d2", Status: model.CertificateValid})
	mustSeed(t, repo, seed)

	snap, err := repo.ReadSnapshot(context.Background(), model.SnapshotQuery{
		ExitNodeID:        1,
		SiteTypes:         model.AllSiteTypes,
		IncludeLoginPages: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []model.LoginPageRow{{
		LoginPageID:       7,
		FullDomain:        "login.example.com",
		DomainID:          "d2",
		ExitNodeID:        1,
		CertificateStatus: model.CertificateValid,
	}}
	if !reflect.DeepEqual(snap.LoginPages, want) {
		t.Fatalf("login pages: got %+v, want %+v", snap.LoginPages, want)
	}

	without, err := repo.ReadSnapshot(context.Background(), model.SnapshotQuery{
		ExitNodeID: 1,
		SiteTypes:  model.AllSiteTypes,
	})
	if err != nil {
		t.Fatal(err)
	}
	if without.LoginPages != nil {
		t.Fatalf("login pages should not load when not requested: %+v", without.LoginPages)
	}
}

func TestTopologyRepo_ExitNodes(t *testing.T) {
	repo := newTestTopologyRepo(t)
	mustSeed(t, repo, baseSeed())

	n, err := repo.GetExitNode(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if n.ReachableAt != "http://gerbil-1:3003" {
		t.Fatalf("reachable_at: got %q", n.ReachableAt)
	}

	n2, err := repo.GetExitNode(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if n2.ReachableAt != "" {
		t.Fatalf("reachable_at should be empty, got %q", n2.ReachableAt)
	}

	if _, err := repo.GetExitNode(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	nodes, err := repo.ListExitNodes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 || nodes[0].ID != 1 || nodes[1].ID != 2 {
		t.Fatalf("unexpected exit nodes: %+v", nodes)
	}

	// Upsert updates in place.
	if err := repo.UpsertExitNode(model.ExitNode{ID: 2, Name: "edge-2", ReachableAt: "http://gerbil-2:3003"}); err != nil {
		t.Fatal(err)
	}
	n2, err = repo.GetExitNode(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if n2.ReachableAt != "http://gerbil-2:3003" {
		t.Fatalf("reachable_at after upsert: got %q", n2.ReachableAt)
	}
}

func TestPersistenceBootstrap_AppliesSeedFile(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	seedYAML := `
exit_nodes:
  - id: 1
    name: edge
    reachable_at: http://gerbil:3003
sites:
  - id: 5
    type: local
    online: true
    exit_node_id: 1
resources:
  - id: 9
    name: web
    full_domain: web.example.com
    http: true
    enabled: true
    enable_proxy: true
targets:
  - id: 90
    resource_id: 9
    site_id: 5
    ip: 10.0.0.1
    method: http
    port: 8080
    enabled: true
`
	if err := os.WriteFile(seedPath, []byte(seedYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	stateDir := filepath.Join(dir, "state")
	repo, closer, err := PersistenceBootstrap(stateDir, seedPath)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	snap, err := repo.ReadSnapshot(context.Background(), model.SnapshotQuery{
		ExitNodeID: 1,
		SiteTypes:  model.AllSiteTypes,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Rows) != 1 || snap.Rows[0].IP != "10.0.0.1" || snap.Rows[0].Port != 8080 {
		t.Fatalf("unexpected rows: %+v", snap.Rows)
	}
}

func TestPersistenceBootstrap_Reopen(t *testing.T) {
	stateDir := t.TempDir()

	repo, closer, err := PersistenceBootstrap(stateDir, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertExitNode(model.ExitNode{ID: 3, Name: "persisted"}); err != nil {
		t.Fatal(err)
	}
	closer.Close()

	// Second boot runs migrations again as a no-op.
	repo2, closer2, err := PersistenceBootstrap(stateDir, "")
	if err != nil {
		t.Fatal(err)
	}
	defer closer2.Close()
	n, err := repo2.GetExitNode(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if n.Name != "persisted" {
		t.Fatalf("name: got %q", n.Name)
	}
}

func TestApplySeed_RejectsUnknownSiteType(t *testing.T) {
	repo := newTestTopologyRepo(t)
	err := repo.ApplySeed(&Seed{Sites: []model.Site{{ID: 1, Type: "carrier-pigeon"}}})
	if err == nil {
		t.Fatal("expected error for unknown site type")
	}
}
