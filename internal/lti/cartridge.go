// internal/lti/cartridge.go
package lti

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Option list names Canvas understands in a tool configuration.
var OptionNames = []string{
	"course_navigation",
	"account_navigation",
	"user_navigation",
	"editor_button",
	"labels",
	"resource_selection",
}

var PrivacyLevels = []string{"public", "email", "name", "anonymous"}

type Property struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// OptionList is a named group of extension properties; lists may nest.
type OptionList struct {
	Name       string       `yaml:"name"`
	Properties []Property   `yaml:"properties"`
	Children   []OptionList `yaml:"children"`
}

// ToolConfig describes the tool to a consumer as a basic LTI link cartridge.
type ToolConfig struct {
	ID           int64        `yaml:"id"`
	Title        string       `yaml:"title"`
	Description  string       `yaml:"description"`
	LaunchURL    string       `yaml:"launch_url"`
	Domain       string       `yaml:"domain"`
	PrivacyLevel string       `yaml:"privacy_level"`
	Text         string       `yaml:"text"`
	Options      []OptionList `yaml:"options"`
}

func (c ToolConfig) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("tool %d: title is required", c.ID)
	}
	if c.LaunchURL == "" {
		return fmt.Errorf("tool %d: launch_url is required", c.ID)
	}
	if c.PrivacyLevel != "" && !contains(PrivacyLevels, c.PrivacyLevel) {
		return fmt.Errorf("tool %d: privacy_level %q is not one of %v", c.ID, c.PrivacyLevel, PrivacyLevels)
	}
	for _, o := range c.Options {
		if !contains(OptionNames, o.Name) {
			return fmt.Errorf("tool %d: unknown option list %q", c.ID, o.Name)
		}
	}
	return nil
}

// The cartridge uses prefixed element names that encoding/xml writes verbatim.

type xmlProperty struct {
	XMLName xml.Name `xml:"lticm:property"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:",chardata"`
}

type xmlOptions struct {
	XMLName    xml.Name `xml:"lticm:options"`
	Name       string   `xml:"name,attr"`
	Properties []xmlProperty
	Children   []xmlOptions
}

type xmlCartridge struct {
	XMLName        xml.Name `xml:"cartridge_basiclti_link"`
	Xmlns          string   `xml:"xmlns,attr"`
	XmlnsBLTI      string   `xml:"xmlns:blti,attr"`
	XmlnsLTICM     string   `xml:"xmlns:lticm,attr"`
	XmlnsLTICP     string   `xml:"xmlns:lticp,attr"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	Title          string   `xml:"blti:title"`
	Description    string   `xml:"blti:description"`
	LaunchURL      string   `xml:"blti:launch_url"`
	Extensions     struct {
		Platform   string `xml:"platform,attr"`
		Properties []xmlProperty
		Options    []xmlOptions
	} `xml:"blti:extensions"`
	Bundle struct {
		Ref string `xml:"identifierref,attr"`
	} `xml:"cartridge_bundle"`
	Icon struct {
		Ref string `xml:"identifierref,attr"`
	} `xml:"cartridge_icon"`
}

const cartridgeSchemaLocation = "http://www.imsglobal.org/xsd/imslticc_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imslticc_v1p0.xsd " +
	"http://www.imsglobal.org/xsd/imsbasiclti_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imsbasiclti_v1p0.xsd " +
	"http://www.imsglobal.org/xsd/imslticm_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imslticm_v1p0.xsd " +
	"http://www.imsglobal.org/xsd/imslticp_v1p0 http://www.imsglobal.org/xsd/lti/ltiv1p0/imslticp_v1p0.xsd"

// CartridgeXML renders c in the format Canvas imports by URL.
func (c ToolConfig) CartridgeXML() ([]byte, error) {
	var x xmlCartridge
	x.Xmlns = "http://www.imsglobal.org/xsd/imslticc_v1p0"
	x.XmlnsBLTI = "http://www.imsglobal.org/xsd/imsbasiclti_v1p0"
	x.XmlnsLTICM = "http://www.imsglobal.org/xsd/imslticm_v1p0"
	x.XmlnsLTICP = "http://www.imsglobal.org/xsd/imslticp_v1p0"
	x.XmlnsXSI = "http://www.w3.org/2001/XMLSchema-instance"
	x.SchemaLocation = cartridgeSchemaLocation
	x.Title = c.Title
	x.Description = c.Description
	x.LaunchURL = c.LaunchURL

	x.Extensions.Platform = "canvas.instructure.com"
	x.Extensions.Properties = append(x.Extensions.Properties, xmlProperty{Name: "tool_id", Value: fmt.Sprintf("tool_%d", c.ID)})
	if c.PrivacyLevel != "" {
		x.Extensions.Properties = append(x.Extensions.Properties, xmlProperty{Name: "privacy_level", Value: c.PrivacyLevel})
	}
	if c.Domain != "" {
		x.Extensions.Properties = append(x.Extensions.Properties, xmlProperty{Name: "domain", Value: c.Domain})
	}
	if c.Text != "" {
		x.Extensions.Properties = append(x.Extensions.Properties, xmlProperty{Name: "text", Value: c.Text})
	}
	for _, o := range c.Options {
		x.Extensions.Options = append(x.Extensions.Options, toXMLOptions(o))
	}
	x.Bundle.Ref = "BLTI001_Bundle"
	x.Icon.Ref = "BLTI001_Icon"

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(x); err != nil {
		return nil, fmt.Errorf("encode cartridge: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func toXMLOptions(o OptionList) xmlOptions {
	out := xmlOptions{Name: o.Name}
	for _, p := range o.Properties {
		out.Properties = append(out.Properties, xmlProperty{Name: p.Name, Value: p.Value})
	}
	for _, ch := range o.Children {
		out.Children = append(out.Children, toXMLOptions(ch))
	}
	return out
}
