package state

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/burrowhq/burrow/internal/model"
)

// Seed is a declarative topology document applied at startup.
type Seed struct {
	ExitNodes        []model.ExitNode          `yaml:"exit_nodes"`
	Sites            []model.Site              `yaml:"sites"`
	Resources        []model.Resource          `yaml:"resources"`
	Targets          []model.Target            `yaml:"targets"`
	HealthChecks     []model.TargetHealthCheck `yaml:"health_checks"`
	Certificates     []model.Certificate       `yaml:"certificates"`
	DomainNamespaces []model.DomainNamespace   `yaml:"domain_namespaces"`
	LoginPages       []model.LoginPage         `yaml:"login_pages"`
}

// LoadSeedFile parses a YAML seed document.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed upserts every entity of seed in dependency order.
func (r *TopologyRepo) ApplySeed(seed *Seed) error {
	if seed == nil {
		return nil
	}
	for _, n := range seed.ExitNodes {
		if err := r.UpsertExitNode(n); err != nil {
			return fmt.Errorf("seed exit node %d: %w", n.ID, err)
		}
	}
	for _, s := range seed.Sites {
		if !s.Type.IsValid() {
			return fmt.Errorf("seed site %d: unknown type %q", s.ID, s.Type)
		}
		if err := r.UpsertSite(s); err != nil {
			return fmt.Errorf("seed site %d: %w", s.ID, err)
		}
	}
	for _, res := range seed.Resources {
		if err := r.UpsertResource(res); err != nil {
			return fmt.Errorf("seed resource %d: %w", res.ID, err)
		}
	}
	for _, t := range seed.Targets {
		if err := r.UpsertTarget(t); err != nil {
			return fmt.Errorf("seed target %d: %w", t.ID, err)
		}
	}
	for _, hc := range seed.HealthChecks {
		if err := r.SetTargetHealth(hc); err != nil {
			return fmt.Errorf("seed health check for target %d: %w", hc.TargetID, err)
		}
	}
	for _, c := range seed.Certificates {
		if err := r.UpsertCertificate(c); err != nil {
			return fmt.Errorf("seed certificate %s: %w", c.Domain, err)
		}
	}
	for _, ns := range seed.DomainNamespaces {
		if err := r.UpsertDomainNamespace(ns); err != nil {
			return fmt.Errorf("seed domain namespace %s: %w", ns.ID, err)
		}
	}
	for _, lp := range seed.LoginPages {
		if err := r.UpsertLoginPage(lp); err != nil {
			return fmt.Errorf("seed login page %d: %w", lp.ID, err)
		}
	}
	return nil
}
