package rank

import (
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Tier is a source domain's curated trust level.
type Tier int

const (
	TierDenied Tier = iota
	TierNeutral
	TierTrusted
)

// TrustList is the curated allow/deny list for source domains. A domain
// entry covers its subdomains.
type TrustList struct {
	Trusted []string `yaml:"trusted"`
	Denied  []string `yaml:"denied"`
}

// LoadTrustList reads a YAML trust list. A missing file yields an empty
// list, not an error.
func LoadTrustList(path string) (*TrustList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &TrustList{}, nil
		}
		return nil, eris.Wrapf(err, "rank: read trust list %s", path)
	}
	var t TrustList
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrapf(err, "rank: parse trust list %s", path)
	}
	return &t, nil
}

// Tier classifies a raw result URL. Deny wins over allow.
func (t *TrustList) Tier(rawURL string) Tier {
	if t == nil {
		return TierNeutral
	}
	domain := domainOf(rawURL)
	if domain == "" {
		return TierNeutral
	}
	for _, d := range t.Denied {
		if matchDomain(domain, d) {
			return TierDenied
		}
	}
	for _, d := range t.Trusted {
		if matchDomain(domain, d) {
			return TierTrusted
		}
	}
	return TierNeutral
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func matchDomain(domain, entry string) bool {
	entry = strings.ToLower(strings.TrimSpace(entry))
	if entry == "" {
		return false
	}
	return domain == entry || strings.HasSuffix(domain, "."+entry)
}
