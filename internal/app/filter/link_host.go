package filter

import (
	"context"
	"strings"
)

// LinkHostConfig represents the configuration for LinkHostFilter.
type LinkHostConfig struct {
	AllowedHosts []string `yaml:"allowed_hosts" mapstructure:"allowed_hosts" validate:"required,min=1,dive,required"`
}

// LinkHostFilter only accepts links to allowed hosts (and their subdomains).
// Search requests always pass.
type LinkHostFilter struct {
	hosts []string
}

func (f *LinkHostFilter) Name() string {
	return "link_host_filter"
}

func (f *LinkHostFilter) Description() string {
	return "Accepts direct links only from allowed hosts"
}

func (f *LinkHostFilter) ReturnCodes() []string {
	return []string{"host_not_allowed"}
}

func (f *LinkHostFilter) ValidateConfig(settings map[string]any) error {
	var config LinkHostConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	f.hosts = make([]string, 0, len(config.AllowedHosts))
	for _, h := range config.AllowedHosts {
		f.hosts = append(f.hosts, strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www."))
	}
	return nil
}

func (f *LinkHostFilter) Check(ctx context.Context, req Request) Result {
	if !req.Song.Request.IsLink() {
		return Accept()
	}

	host := req.Song.Request.Host()
	for _, allowed := range f.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return Accept()
		}
	}
	return Reject("host_not_allowed")
}

func init() {
	Register("link_host_filter", func() Filter {
		return &LinkHostFilter{}
	})
}
