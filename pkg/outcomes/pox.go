// pkg/outcomes/pox.go
package outcomes

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// NamespaceOMS is the LTI 1.1 Outcomes Management Service namespace.
	NamespaceOMS = "http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0"
	POXVersion   = "V1.0"

	ContentTypePOX    = "application/xml"
	ContentTypeResult = "application/vnd.ims.lis.v2.result+json"

	CodeMajorSuccess = "success"
)

var ErrScoreRange = errors.New("outcomes: score must be within [0, 1]")

// ValidScore reports whether score is an acceptable normalized grade.
func ValidScore(score float64) bool { return score >= 0 && score <= 1 }

type poxRequest struct {
	XMLName xml.Name `xml:"imsx_POXEnvelopeRequest"`
	Xmlns   string   `xml:"xmlns,attr"`
	Header  struct {
		Info struct {
			Version           string `xml:"imsx_version"`
			MessageIdentifier string `xml:"imsx_messageIdentifier"`
		} `xml:"imsx_POXRequestHeaderInfo"`
	} `xml:"imsx_POXHeader"`
	Body struct {
		ReplaceResult *replaceResult `xml:"replaceResultRequest,omitempty"`
	} `xml:"imsx_POXBody"`
}

type replaceResult struct {
	SourcedID string `xml:"resultRecord>sourcedGUID>sourcedId"`
	Score     struct {
		Language   string `xml:"language"`
		TextString string `xml:"textString"`
	} `xml:"resultRecord>result>resultScore"`
}

// ReplaceResultRequest renders the POX envelope that sets the score of the
// result identified by sourcedID.
func ReplaceResultRequest(messageID, sourcedID string, score float64) ([]byte, error) {
	if !ValidScore(score) {
		return nil, ErrScoreRange
	}
	if sourcedID == "" {
		return nil, errors.New("outcomes: lis_result_sourcedid is required")
	}
	var env poxRequest
	env.Xmlns = NamespaceOMS
	env.Header.Info.Version = POXVersion
	env.Header.Info.MessageIdentifier = messageID
	rr := &replaceResult{SourcedID: sourcedID}
	rr.Score.Language = "en"
	rr.Score.TextString = strconv.FormatFloat(score, 'f', -1, 64)
	env.Body.ReplaceResult = rr

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("outcomes: encode pox: %w", err)
	}
	return buf.Bytes(), nil
}

// Response is the status block of an imsx_POXEnvelopeResponse.
type Response struct {
	MessageIdentifier    string
	CodeMajor            string
	Severity             string
	Description          string
	MessageRefIdentifier string
	// Operation is the local name of the body element, e.g. replaceResultResponse.
	Operation string
}

func (r Response) Success() bool { return r.CodeMajor == CodeMajorSuccess }

type poxResponse struct {
	XMLName xml.Name `xml:"imsx_POXEnvelopeResponse"`
	Info    struct {
		MessageIdentifier string `xml:"imsx_messageIdentifier"`
		Status            struct {
			CodeMajor            string `xml:"imsx_codeMajor"`
			Severity             string `xml:"imsx_severity"`
			Description          string `xml:"imsx_description"`
			MessageRefIdentifier string `xml:"imsx_messageRefIdentifier"`
		} `xml:"imsx_statusInfo"`
	} `xml:"imsx_POXHeader>imsx_POXResponseHeaderInfo"`
	Body struct {
		Inner struct {
			XMLName xml.Name
		} `xml:",any"`
	} `xml:"imsx_POXBody"`
}

// ParseResponse decodes a consumer's POX reply.
func ParseResponse(b []byte) (Response, error) {
	var env poxResponse
	if err := xml.Unmarshal(b, &env); err != nil {
		return Response{}, fmt.Errorf("outcomes: decode pox response: %w", err)
	}
	st := env.Info.Status
	return Response{
		MessageIdentifier:    strings.TrimSpace(env.Info.MessageIdentifier),
		CodeMajor:            strings.TrimSpace(st.CodeMajor),
		Severity:             strings.TrimSpace(st.Severity),
		Description:          strings.TrimSpace(st.Description),
		MessageRefIdentifier: strings.TrimSpace(st.MessageRefIdentifier),
		Operation:            env.Body.Inner.XMLName.Local,
	}, nil
}
