package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/burrowhq/burrow/internal/compiler"
	"github.com/burrowhq/burrow/internal/topology"
)

// FileConfig is the deployment file. Absent keys keep their defaults.
type FileConfig struct {
	Traefik TraefikConfig           `yaml:"traefik" json:"traefik"`
	Domains map[string]DomainConfig `yaml:"domains" json:"domains"`
	Server  ServerConfig            `yaml:"server" json:"server"`
	Flags   FlagsConfig             `yaml:"flags" json:"flags"`
	Policy  PolicyConfig            `yaml:"policy" json:"policy"`
}

// TraefikConfig names the edge proxy's entrypoints and certificate defaults.
type TraefikConfig struct {
	HTTPEntrypoint        string   `yaml:"http_entrypoint" json:"http_entrypoint"`
	HTTPSEntrypoint       string   `yaml:"https_entrypoint" json:"https_entrypoint"`
	AdditionalMiddlewares []string `yaml:"additional_middlewares" json:"additional_middlewares"`
	CertResolver          string   `yaml:"cert_resolver" json:"cert_resolver"`
	PreferWildcardCert    bool     `yaml:"prefer_wildcard_cert" json:"prefer_wildcard_cert"`
	StickyCookieName      string   `yaml:"sticky_cookie_name" json:"sticky_cookie_name"`
}

// DomainConfig overrides certificate policy for one domain id.
type DomainConfig struct {
	BaseDomain         string `yaml:"base_domain" json:"base_domain"`
	CertResolver       string `yaml:"cert_resolver" json:"cert_resolver"`
	PreferWildcardCert bool   `yaml:"prefer_wildcard_cert" json:"prefer_wildcard_cert"`
}

// ServerConfig locates the landing service behind login pages.
type ServerConfig struct {
	InternalHostname string `yaml:"internal_hostname" json:"internal_hostname"`
	NextPort         int    `yaml:"next_port" json:"next_port"`
}

// FlagsConfig toggles optional document features.
type FlagsConfig struct {
	AllowRawResources bool `yaml:"allow_raw_resources" json:"allow_raw_resources"`
	ExposeTLSConfig   bool `yaml:"expose_tls_config" json:"expose_tls_config"`
}

// PolicyConfig tunes backend selection.
type PolicyConfig struct {
	ExcludeOfflineSiblings bool `yaml:"exclude_offline_siblings" json:"exclude_offline_siblings"`
}

// NewDefaultFileConfig returns the configuration of a deployment without a file.
func NewDefaultFileConfig() *FileConfig {
	return &FileConfig{
		Traefik: TraefikConfig{
			HTTPEntrypoint:        "web",
			HTTPSEntrypoint:       "websecure",
			AdditionalMiddlewares: []string{},
			CertResolver:          "letsencrypt",
			StickyCookieName:      compiler.DefaultStickyCookieName,
		},
		Domains: map[string]DomainConfig{},
		Server: ServerConfig{
			InternalHostname: "pangolin",
			NextPort:         3002,
		},
		Flags: FlagsConfig{
			ExposeTLSConfig: true,
		},
		Policy: PolicyConfig{
			ExcludeOfflineSiblings: true,
		},
	}
}

// LoadFileConfig reads and validates the deployment file at path.
// An empty path yields the defaults.
func LoadFileConfig(path string) (*FileConfig, error) {
	if path == "" {
		return NewDefaultFileConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := ParseFileConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ParseFileConfig decodes a deployment file over the defaults.
func ParseFileConfig(data []byte) (*FileConfig, error) {
	cfg := NewDefaultFileConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the file for values no compilation could use.
func (c *FileConfig) Validate() error {
	var errs []string
	if strings.TrimSpace(c.Traefik.HTTPEntrypoint) == "" {
		errs = append(errs, "traefik.http_entrypoint must not be empty")
	}
	if strings.TrimSpace(c.Traefik.HTTPSEntrypoint) == "" {
		errs = append(errs, "traefik.https_entrypoint must not be empty")
	}
	if strings.TrimSpace(c.Traefik.StickyCookieName) == "" {
		errs = append(errs, "traefik.sticky_cookie_name must not be empty")
	}
	for i, mw := range c.Traefik.AdditionalMiddlewares {
		if strings.TrimSpace(mw) == "" {
			errs = append(errs, fmt.Sprintf("traefik.additional_middlewares[%d] must not be empty", i))
		}
	}
	if strings.TrimSpace(c.Server.InternalHostname) == "" {
		errs = append(errs, "server.internal_hostname must not be empty")
	}
	validatePort("server.next_port", c.Server.NextPort, &errs)
	if len(errs) > 0 {
		return fmt.Errorf("invalid config file:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ToCompilerOptions converts the file into compile options.
func (c *FileConfig) ToCompilerOptions(debug bool) compiler.Options {
	domains := make(map[string]compiler.DomainOptions, len(c.Domains))
	for id, d := range c.Domains {
		domains[id] = compiler.DomainOptions{
			CertResolver:       d.CertResolver,
			PreferWildcardCert: d.PreferWildcardCert,
		}
	}
	middlewares := make([]string, 0, len(c.Traefik.AdditionalMiddlewares))
	for _, mw := range c.Traefik.AdditionalMiddlewares {
		middlewares = append(middlewares, strings.TrimSpace(mw))
	}
	return compiler.Options{
		HTTPEntrypoint:        c.Traefik.HTTPEntrypoint,
		HTTPSEntrypoint:       c.Traefik.HTTPSEntrypoint,
		AdditionalMiddlewares: middlewares,
		CertResolver:          c.Traefik.CertResolver,
		PreferWildcardCert:    c.Traefik.PreferWildcardCert,
		Domains:               domains,
		ExposeTLSConfig:       c.Flags.ExposeTLSConfig,
		StickyCookieName:      c.Traefik.StickyCookieName,
		LandingServiceURL:     "http://" + c.Server.InternalHostname + ":" + strconv.Itoa(c.Server.NextPort),
		AllowRawResources:     c.Flags.AllowRawResources,
		BackendPolicy:         topology.Policy{ExcludeOfflineSiblings: c.Policy.ExcludeOfflineSiblings},
		Debug:                 debug,
	}
}
