// Package payload decodes request bodies into records and encodes records back.
//
// The request's Content-Type decides the format:
//   - application/xml (or text/xml): the body is XML and is converted into a nested
//     mapping with clbanning/mxj, rooted at the entity's element name.
//   - anything else: the body must be a JSON object.
//
// Responses to writes are encoded in the same format the request was decoded from.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/errs"
	"github.com/clbanning/mxj/v2"
)

// Format is the wire format of a payload.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
)

const (
	MIMEApplicationJSON = "application/json"
	MIMEApplicationXML  = "application/xml"
	MIMETextXML         = "text/xml"
)

// ContentType returns the response Content-Type for the format.
func (f Format) ContentType() string {
	if f == FormatXML {
		return MIMEApplicationXML + "; charset=UTF-8"
	}
	return MIMEApplicationJSON + "; charset=UTF-8"
}

// FormatOf maps a Content-Type header value to a Format.
// Only XML media types select XML; everything else, including an empty header, is JSON.
func FormatOf(contentType string) Format {
	if contentType == "" {
		return FormatJSON
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	switch mediaType {
	case MIMEApplicationXML, MIMETextXML:
		return FormatXML
	default:
		return FormatJSON
	}
}

// Payload is a decoded request body.
type Payload struct {
	// Format is the format the body was decoded from.
	Format Format

	// Raw is the body exactly as received; schema validation works on it.
	Raw []byte

	// Fields is the decoded mapping (the children of the root element for XML).
	Fields map[string]any
}

// Decode parses body according to contentType for the given entity family.
//
// It returns a 400 *errs.HTTPError when the body is absent or malformed, or when an
// XML document's root element is not the family's element.
func Decode(d entity.Descriptor, contentType string, body []byte) (*Payload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errs.NewBadRequestError("Request body is required", false, nil, nil, nil)
	}

	format := FormatOf(contentType)
	switch format {
	case FormatXML:
		fields, err := decodeXML(d, body)
		if err != nil {
			return nil, err
		}
		return &Payload{Format: FormatXML, Raw: body, Fields: fields}, nil
	default:
		fields, err := decodeJSON(body)
		if err != nil {
			return nil, err
		}
		return &Payload{Format: FormatJSON, Raw: body, Fields: fields}, nil
	}
}

func decodeJSON(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, errs.NewBadRequestError(fmt.Sprintf("Invalid JSON body: %v", err), false, nil, nil, nil)
	}
	if fields == nil {
		return nil, errs.NewBadRequestError("Invalid JSON body: expected an object", false, nil, nil, nil)
	}
	// Reject trailing data such as `{}{}`.
	if _, err := dec.Token(); err != io.EOF {
		return nil, errs.NewBadRequestError("Invalid JSON body: unexpected data after object", false, nil, nil, nil)
	}
	return fields, nil
}

func decodeXML(d entity.Descriptor, body []byte) (map[string]any, error) {
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, errs.NewBadRequestError(fmt.Sprintf("Invalid XML body: %v", err), false, nil, nil, nil)
	}

	root, ok := m[d.Name]
	if !ok || len(m) != 1 {
		return nil, errs.NewBadRequestError(
			fmt.Sprintf("Invalid XML body: root element must be <%s>", d.Name), false, nil, nil, nil)
	}

	switch v := root.(type) {
	case map[string]any:
		return v, nil
	case string:
		// <product/> or <product></product>
		return map[string]any{}, nil
	default:
		return nil, errs.NewBadRequestError(
			fmt.Sprintf("Invalid XML body: unexpected content in <%s>", d.Name), false, nil, nil, nil)
	}
}

// Encode writes rec in the given format.
func Encode(format Format, d entity.Descriptor, rec entity.Record) ([]byte, error) {
	switch format {
	case FormatXML:
		b, err := mxj.Map(rec.Strings(d)).Xml(d.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s as XML: %w", d.Name, err)
		}
		return b, nil
	default:
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s as JSON: %w", d.Name, err)
		}
		return b, nil
	}
}
