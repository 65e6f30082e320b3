package mirror

import (
	"net/url"
	"strings"

	"github.com/ippclub/craftsync/internal/apperr"
	"github.com/ippclub/craftsync/internal/config"
)

// Mirror rewrites upstream URLs to a configured mirror
type Mirror struct {
	enabled   bool
	metaBase  *url.URL
	assetBase string
	rules     []config.MirrorRule
}

// New validates the mirror section of the configuration
func New(cfg config.Mirror) (*Mirror, error) {
	m := &Mirror{
		enabled:   cfg.Enabled,
		assetBase: strings.TrimSuffix(cfg.AssetBase, "/"),
		rules:     make([]config.MirrorRule, 0, len(cfg.Rules)),
	}
	if cfg.MetaBase != "" {
		base, err := parseAbsolute(cfg.MetaBase)
		if err != nil {
			return nil, err
		}
		m.metaBase = base
	}
	if _, err := parseAbsolute(m.assetBase + "/"); err != nil {
		return nil, err
	}
	for _, r := range cfg.Rules {
		if r.From == "" {
			continue
		}
		m.rules = append(m.rules, config.MirrorRule{
			From: strings.TrimSuffix(r.From, "/"),
			To:   strings.TrimSuffix(r.To, "/"),
		})
	}
	return m, nil
}

// Rewrite replaces the first matching upstream prefix of raw with the mirror's
// prefix. URLs no rule matches are returned unchanged. Either way the result
// must be an absolute http(s) URL.
func (m *Mirror) Rewrite(raw string) (string, error) {
	out := raw
	if m.enabled {
		for _, r := range m.rules {
			if raw == r.From || strings.HasPrefix(raw, r.From+"/") {
				out = r.To + strings.TrimPrefix(raw, r.From)
				break
			}
		}
	}
	if _, err := parseAbsolute(out); err != nil {
		return "", err
	}
	return out, nil
}

// RewriteAuthority replaces scheme and host of raw with the mirror's meta base,
// keeping the path and query. Used for version list entries and manifests.
func (m *Mirror) RewriteAuthority(raw string) (string, error) {
	u, err := parseAbsolute(raw)
	if err != nil {
		return "", err
	}
	if !m.enabled || m.metaBase == nil {
		return u.String(), nil
	}
	rewritten := *u
	rewritten.Scheme = m.metaBase.Scheme
	rewritten.Host = m.metaBase.Host
	rewritten.Path = strings.TrimSuffix(m.metaBase.Path, "/") + u.Path
	rewritten.RawPath = ""
	return rewritten.String(), nil
}

// AssetURL returns the download URL of a content-addressed object
func (m *Mirror) AssetURL(hash string) (string, error) {
	if len(hash) < 2 {
		return "", apperr.Errorf(apperr.InvalidURL, hash, "asset hash too short")
	}
	out := m.assetBase + "/" + hash[:2] + "/" + hash
	if _, err := parseAbsolute(out); err != nil {
		return "", err
	}
	return out, nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperr.New(apperr.InvalidURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperr.Errorf(apperr.InvalidURL, raw, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, apperr.Errorf(apperr.InvalidURL, raw, "missing host")
	}
	return u, nil
}
