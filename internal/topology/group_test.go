package topology

import (
	"reflect"
	"testing"

	"github.com/burrowhq/burrow/internal/model"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"/api", "api"},
		{"/api/v1/", "api-v1"},
		{"My App!", "My-App"},
		{"--a__b--", "a-b"},
		{"^/foo$", "foo"},
		{"abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz", "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwx"},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGroupKey(t *testing.T) {
	cases := []struct {
		id        int64
		path      string
		matchType model.PathMatchType
		want      string
	}{
		{7, "", model.PathMatchNone, "7"},
		{7, "/api", model.PathMatchExact, "7-api-exact"},
		{7, "/", model.PathMatchPrefix, "7-prefix"},
		{7, "^/v[0-9]+/", model.PathMatchRegex, "7-v-0-9-regex"},
		{7, "/api", model.PathMatchNone, "7-api"},
	}
	for _, tc := range cases {
		if got := GroupKey(tc.id, tc.path, tc.matchType); got != tc.want {
			t.Errorf("GroupKey(%d, %q, %q) = %q, want %q", tc.id, tc.path, tc.matchType, got, tc.want)
		}
	}
}

func row(resourceID, targetID int64, path string, mt model.PathMatchType) model.TopologyRow {
	return model.TopologyRow{
		ResourceID:    resourceID,
		ResourceName:  "res",
		FullDomain:    "app.example.com",
		HTTP:          true,
		Enabled:       true,
		TargetID:      targetID,
		TargetEnabled: true,
		IP:            "10.0.0.1",
		Method:        "http",
		Port:          int(targetID),
		Path:          path,
		PathMatchType: mt,
		SiteID:        1,
		SiteType:      model.SiteTypeLocal,
		SiteOnline:    true,
	}
}

func TestGroupRows_GroupsByResourceAndPath(t *testing.T) {
	rows := []model.TopologyRow{
		row(1, 10, "/api", model.PathMatchPrefix),
		row(1, 11, "", model.PathMatchNone),
		row(1, 12, "/api", model.PathMatchPrefix),
		row(2, 20, "", model.PathMatchNone),
	}
	rows[0].Priority = 300
	rows[2].Priority = 50

	set := GroupRows(rows, false)
	if set.Len() != 3 {
		t.Fatalf("expected 3 groups, got %d", set.Len())
	}

	var keys []string
	for _, g := range set.Groups() {
		keys = append(keys, g.Key)
	}
	if want := []string{"1-api-prefix", "1", "2"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys: got %v, want %v", keys, want)
	}

	g, ok := set.Get("1-api-prefix")
	if !ok {
		t.Fatal("missing group 1-api-prefix")
	}
	if len(g.Targets) != 2 || g.Targets[0].ID != 10 || g.Targets[1].ID != 12 {
		t.Fatalf("unexpected targets: %+v", g.Targets)
	}
	if g.Priority != 300 {
		t.Fatalf("first-seen priority should win, got %d", g.Priority)
	}
}

func TestGroupRows_NamespaceFilter(t *testing.T) {
	rows := []model.TopologyRow{
		row(1, 10, "", model.PathMatchNone),
		row(2, 20, "", model.PathMatchNone),
	}
	rows[1].DomainNamespaceID = "ns"

	if got := GroupRows(rows, false).Len(); got != 2 {
		t.Fatalf("unfiltered: expected 2 groups, got %d", got)
	}
	filtered := GroupRows(rows, true)
	if filtered.Len() != 1 {
		t.Fatalf("filtered: expected 1 group, got %d", filtered.Len())
	}
	if _, ok := filtered.Get("2"); ok {
		t.Fatal("namespaced resource should be dropped")
	}
}

func TestGroupRows_Empty(t *testing.T) {
	set := GroupRows(nil, true)
	if set.Len() != 0 || len(set.Groups()) != 0 {
		t.Fatalf("expected empty set, got %d", set.Len())
	}
}
