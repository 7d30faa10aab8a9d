package llm

import (
	"fmt"
	"net/url"
	"strings"
)

// Style is the wire-format family a provider speaks.
type Style string

const (
	// StyleNativeOllama posts {model, prompt, ...} to the endpoint as-is and
	// streams NDJSON.
	StyleNativeOllama Style = "native-ollama"

	// StyleOpenAIChat posts {model, messages, ...} to <endpoint>/chat/completions
	// and streams SSE. Covers OpenAI, DeepSeek and LAN OpenAI-compatible servers.
	StyleOpenAIChat Style = "openai-chat"
)

func (s Style) Valid() bool {
	_, ok := codecs[s]
	return ok
}

func (s Style) String() string { return string(s) }

// Profile holds the connection parameters of one provider. Profiles are values;
// a Registry never hands out pointers to its copies.
type Profile struct {
	ID       string
	Endpoint string
	APIKey   string
	Model    string
	Style    Style

	// ProbePath overrides the capability probe endpoint. A relative path is
	// resolved against the endpoint's origin; empty means the style default.
	ProbePath string

	// Preflight probes the provider before every generation call.
	Preflight bool

	// RateLimit caps outgoing generation calls per second. Zero disables it.
	RateLimit float64
}

// Validate reports the first configuration problem of the profile.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("llm: profile id is empty")
	}
	if !p.Style.Valid() {
		return fmt.Errorf("llm: profile %s: unknown style %q", p.ID, p.Style)
	}
	u, err := url.Parse(strings.TrimSpace(p.Endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("llm: profile %s: endpoint must be an absolute url", p.ID)
	}
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("llm: profile %s: model is empty", p.ID)
	}
	if p.RateLimit < 0 {
		return fmt.Errorf("llm: profile %s: rate limit must not be negative", p.ID)
	}
	return nil
}

// Redacted returns a copy safe for display: the api key is masked and the
// endpoint loses its userinfo, query and fragment.
func (p Profile) Redacted() Profile {
	p.APIKey = maskKey(p.APIKey)
	p.Endpoint = displayURL(p.Endpoint)
	return p
}

func displayURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	return u.String()
}

// HasCredential reports whether an api key is configured.
func (p Profile) HasCredential() bool { return strings.TrimSpace(p.APIKey) != "" }

func maskKey(k string) string {
	k = strings.TrimSpace(k)
	switch {
	case k == "":
		return ""
	case len(k) <= 8:
		return "***"
	default:
		return k[:3] + "***" + k[len(k)-2:]
	}
}

func (p Profile) endpoint() string {
	return strings.TrimRight(strings.TrimSpace(p.Endpoint), "/")
}

// generateURL is where the generation request is posted.
func (p Profile) generateURL() string {
	if p.Style == StyleOpenAIChat {
		return p.endpoint() + "/chat/completions"
	}
	return p.endpoint()
}

// probeURL is the capability probe endpoint: the sibling /api/version of an
// ollama generate endpoint, <endpoint>/models otherwise.
func (p Profile) probeURL() (string, error) {
	if pp := strings.TrimSpace(p.ProbePath); pp != "" {
		ref, err := url.Parse(pp)
		if err != nil {
			return "", err
		}
		if ref.IsAbs() {
			return ref.String(), nil
		}
		base, err := url.Parse(p.endpoint())
		if err != nil {
			return "", err
		}
		if !strings.HasPrefix(ref.Path, "/") {
			ref.Path = "/" + ref.Path
		}
		return base.ResolveReference(ref).String(), nil
	}
	if p.Style == StyleNativeOllama {
		return ollamaSibling(p.endpoint(), "/api/version")
	}
	return p.endpoint() + "/models", nil
}

// ollamaSibling maps http://host/api/generate to http://host/<path>.
func ollamaSibling(endpoint, path string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	prefix := u.Path
	if i := strings.Index(prefix, "/api/"); i >= 0 {
		prefix = prefix[:i]
	}
	u.Path = strings.TrimRight(prefix, "/") + path
	u.RawQuery = ""
	return u.String(), nil
}
