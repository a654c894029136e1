package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/mind-engage/mindengage-lti/internal/lti"
)

// SettingsFile is the YAML document named by LTI_SETTINGS_FILE.
//
//	properties: [custom_canvas_user_id]
//	roles:
//	  staff: [TeachingAssistant]
//	url_fix:
//	  - prefix: https://localhost
//	    replacements:
//	      - {from: https://localhost, to: http://localhost}
//	tools:
//	  - id: 1
//	    title: Quiz
//	    launch_url: https://tool.example/lti/initial
type SettingsFile struct {
	Properties []string            `yaml:"properties"`
	Roles      map[string][]string `yaml:"roles"`
	URLFix     lti.URLFix          `yaml:"url_fix"`
	Tools      []lti.ToolConfig    `yaml:"tools"`
}

// ReadSettingsFile parses and validates path. An empty path yields an empty
// file.
func ReadSettingsFile(path string) (SettingsFile, error) {
	var f SettingsFile
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing settings file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("validating settings file: %w", err)
	}
	return f, nil
}

func (f SettingsFile) Validate() error {
	for name := range f.Roles {
		if name == "" || name == lti.RoleAny {
			return fmt.Errorf("role name %q is reserved", name)
		}
	}
	for idx, r := range f.URLFix {
		if r.Prefix == "" {
			return fmt.Errorf("url_fix at index %d has empty prefix", idx)
		}
	}
	seen := map[int64]bool{}
	for _, t := range f.Tools {
		if seen[t.ID] {
			return fmt.Errorf("duplicate tool id %d", t.ID)
		}
		seen[t.ID] = true
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Settings merges the file over the defaults. The result is shared read-only
// by every request.
func (f SettingsFile) Settings(c Config) lti.Settings {
	s := lti.DefaultSettings()
	s.Properties = s.Properties.With(f.Properties...)
	for name, uris := range f.Roles {
		s.Roles = s.Roles.With(name, uris...)
	}
	s.URLFix = append(lti.URLFix(nil), f.URLFix...)
	s.ForceHTTPS = c.ForceHTTPS
	s.TrustForwardedProto = c.TrustForwardedProto
	return s
}

// Tool looks up a tool configuration by id.
func (f SettingsFile) Tool(id int64) (lti.ToolConfig, bool) {
	for _, t := range f.Tools {
		if t.ID == id {
			return t, true
		}
	}
	return lti.ToolConfig{}, false
}
