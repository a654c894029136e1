package lti

import (
	"fmt"
	"sort"
	"strings"
)

// RoleAny disables the role check.
const RoleAny = "any"

// DefaultProperties are the launch parameters copied into the session.
var DefaultProperties = []string{
	"oauth_consumer_key",
	"launch_presentation_return_url",
	"user_id",
	"oauth_nonce",
	"context_label",
	"context_id",
	"resource_link_title",
	"resource_link_id",
	"lis_person_contact_email_primary",
	"lis_person_contact_emailprimary",
	"lis_person_name_full",
	"lis_person_name_family",
	"lis_person_name_given",
	"lis_result_sourcedid",
	"lis_person_sourcedid",
	"launch_type",
	"lti_message",
	"lti_message_type",
	"lti_version",
	"roles",
	"lis_outcome_service_url",
	// Canvas reports secondary roles here.
	"ext_roles",
}

// PropertyList is an ordered set of launch parameter names. The zero value is
// empty; values are never mutated after construction.
type PropertyList struct {
	names []string
	index map[string]struct{}
}

func NewPropertyList(names ...string) PropertyList {
	return PropertyList{}.With(names...)
}

func DefaultPropertyList() PropertyList { return NewPropertyList(DefaultProperties...) }

// With returns a copy extended by names; duplicates and blanks are ignored.
func (p PropertyList) With(names ...string) PropertyList {
	out := PropertyList{
		names: make([]string, len(p.names), len(p.names)+len(names)),
		index: make(map[string]struct{}, len(p.names)+len(names)),
	}
	copy(out.names, p.names)
	for _, n := range p.names {
		out.index[n] = struct{}{}
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := out.index[n]; dup {
			continue
		}
		out.index[n] = struct{}{}
		out.names = append(out.names, n)
	}
	return out
}

func (p PropertyList) Contains(name string) bool {
	_, ok := p.index[name]
	return ok
}

func (p PropertyList) Names() []string { return append([]string(nil), p.names...) }

func (p PropertyList) Len() int { return len(p.names) }

// RoleMap maps a canonical role name to the role URIs that satisfy it.
type RoleMap struct {
	roles map[string][]string
}

func NewRoleMap(m map[string][]string) RoleMap {
	rm := RoleMap{roles: map[string][]string{}}
	for name, uris := range m {
		rm = rm.With(name, uris...)
	}
	return rm
}

// DefaultRoleMap covers LIS short names and the URNs Canvas sends.
func DefaultRoleMap() RoleMap {
	return NewRoleMap(map[string][]string{
		"staff":         {"Administrator", "Instructor"},
		"instructor":    {"Instructor", "urn:lti:instrole:ims/lis/Instructor"},
		"administrator": {"Administrator", "urn:lti:instrole:ims/lis/Administrator"},
		"student":       {"Student", "Learner", "urn:lti:instrole:ims/lis/Learner"},
	})
}

// With returns a copy in which name also matches uris. A new name is added.
func (m RoleMap) With(name string, uris ...string) RoleMap {
	out := RoleMap{roles: make(map[string][]string, len(m.roles)+1)}
	for k, v := range m.roles {
		out.roles[k] = append([]string(nil), v...)
	}
	name = strings.TrimSpace(name)
	if name == "" || name == RoleAny {
		return out
	}
	cur := out.roles[name]
	for _, u := range uris {
		u = strings.TrimSpace(u)
		if u == "" || contains(cur, u) {
			continue
		}
		cur = append(cur, u)
	}
	out.roles[name] = cur
	return out
}

func (m RoleMap) Has(name string) bool {
	_, ok := m.roles[name]
	return ok
}

func (m RoleMap) URIs(name string) []string { return append([]string(nil), m.roles[name]...) }

func (m RoleMap) Names() []string {
	out := make([]string, 0, len(m.roles))
	for k := range m.roles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Match reports whether any of held satisfies the named role. A name that is
// not in the map is an error, never a plain false.
func (m RoleMap) Match(name string, held []string) (bool, error) {
	uris, ok := m.roles[name]
	if !ok {
		return false, fmt.Errorf("%w %s", ErrUnknownRole, name)
	}
	for _, h := range held {
		if contains(uris, h) {
			return true, nil
		}
	}
	return false, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Replacement is one substring rewrite.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// URLFixRule rewrites URLs starting with Prefix.
type URLFixRule struct {
	Prefix       string        `yaml:"prefix"`
	Replacements []Replacement `yaml:"replacements"`
}

// URLFix rewrites outcome service URLs that consumers report with hostnames
// unreachable from the tool (typically dev stacks behind docker).
type URLFix []URLFixRule

// Apply runs every rule whose prefix matches, in order. Each rule tests the
// URL as rewritten by the rules before it.
func (f URLFix) Apply(u string) string {
	for _, rule := range f {
		if !strings.HasPrefix(u, rule.Prefix) {
			continue
		}
		for _, r := range rule.Replacements {
			if r.From == "" {
				continue
			}
			u = strings.ReplaceAll(u, r.From, r.To)
		}
	}
	return u
}

// Settings is the immutable tool configuration shared by all requests.
type Settings struct {
	Properties PropertyList
	Roles      RoleMap
	URLFix     URLFix

	// ForceHTTPS signs against https regardless of how the request arrived.
	ForceHTTPS bool
	// TrustForwardedProto honours X-Forwarded-Proto from a TLS-terminating proxy.
	TrustForwardedProto bool
}

func DefaultSettings() Settings {
	return Settings{
		Properties:          DefaultPropertyList(),
		Roles:               DefaultRoleMap(),
		TrustForwardedProto: true,
	}
}
