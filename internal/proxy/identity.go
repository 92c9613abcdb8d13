// Package proxy issues single-use upstream proxy identities so consecutive
// requests appear to originate from distinct sessions.
package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Config holds the rotating-proxy credentials. All values arrive from the
// configuration layer; nothing here is read from process-wide state.
type Config struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	UsernameBase string `mapstructure:"username_base"`
	Password     string `mapstructure:"password"`
	Country      string `mapstructure:"country"`
}

// Identity is an ephemeral per-request proxy credential. It is never reused;
// the 128-bit session token makes collisions a theoretical concern only.
type Identity struct {
	HTTPProxyURL  string
	HTTPSProxyURL string
}

// Provider mints fresh identities. It is stateless and safe for concurrent use.
type Provider struct {
	cfg Config
}

// NewProvider validates the credentials and returns a Provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("proxy host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("proxy port must be > 0")
	}
	if cfg.UsernameBase == "" {
		return nil, fmt.Errorf("proxy username base is required")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("proxy password is required")
	}
	return &Provider{cfg: cfg}, nil
}

// NewIdentity generates a fresh session token and builds proxy endpoint URLs
// embedding it. Each outbound request gets its own identity.
func (p *Provider) NewIdentity() Identity {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	user := fmt.Sprintf("%s-session-%s", p.cfg.UsernameBase, token)
	if p.cfg.Country != "" {
		user = fmt.Sprintf("%s-country-%s-session-%s", p.cfg.UsernameBase, strings.ToLower(p.cfg.Country), token)
	}
	endpoint := url.URL{
		Scheme: "http",
		User:   url.UserPassword(user, p.cfg.Password),
		Host:   net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port)),
	}
	raw := endpoint.String()
	return Identity{HTTPProxyURL: raw, HTTPSProxyURL: raw}
}
