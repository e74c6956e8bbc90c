// Package schema validates request payloads against the XML Schema and JSON Schema
// documents describing every entity family.
//
// Both documents are read from a Source on every call, so edits to the schema files
// take effect without a restart.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/entity"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/payload"
	"github.com/lestrrat-go/libxml2"
	"github.com/lestrrat-go/libxml2/xsd"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var xmlElementPattern = regexp.MustCompile(`Element '([^']+)'`)

// Reason is a single schema violation.
type Reason struct {
	// Field is the offending field, or the family name when the problem is with the
	// record as a whole (e.g. a missing required field).
	Field   string
	Message string
}

// ValidationError reports a payload that does not satisfy its schema.
type ValidationError struct {
	Format  payload.Format
	Reasons []Reason
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		msgs = append(msgs, r.Message)
	}
	return fmt.Sprintf("%s payload does not match schema: %s", e.Format, strings.Join(msgs, "; "))
}

// LoadError reports a schema document that could not be read or compiled.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading schema %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Validator checks payloads against the schemas found in a Source.
type Validator struct {
	source   Source
	xsdPath  string
	jsonPath string
}

// NewValidator returns a Validator reading the XSD at xsdPath and the JSON Schema at
// jsonPath from source.
func NewValidator(source Source, xsdPath, jsonPath string) *Validator {
	return &Validator{source: source, xsdPath: xsdPath, jsonPath: jsonPath}
}

// Validate checks p against the schema of its format.
//
// It returns nil when the payload is valid, a *ValidationError listing every
// violation, or a *LoadError when the schema itself is unusable.
func (v *Validator) Validate(ctx context.Context, d entity.Descriptor, p *payload.Payload) error {
	if p.Format == payload.FormatXML {
		return v.validateXML(ctx, d, p.Raw)
	}
	return v.validateJSON(ctx, d, p.Raw)
}

// ValidateXML reports whether raw is a valid XML document for the family.
func (v *Validator) ValidateXML(ctx context.Context, d entity.Descriptor, raw []byte) bool {
	return report(ctx, d, payload.FormatXML, v.validateXML(ctx, d, raw))
}

// ValidateJSON reports whether raw is a valid JSON document for the family.
func (v *Validator) ValidateJSON(ctx context.Context, d entity.Descriptor, raw []byte) bool {
	return report(ctx, d, payload.FormatJSON, v.validateJSON(ctx, d, raw))
}

func report(ctx context.Context, d entity.Descriptor, format payload.Format, err error) bool {
	if err == nil {
		return true
	}

	logger := zerolog.Ctx(ctx)
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		logger.Error().Err(err).Str("family", d.Name).Str("format", string(format)).Msg("schema unavailable")
	} else {
		logger.Info().Err(err).Str("family", d.Name).Str("format", string(format)).Msg("payload rejected by schema")
	}
	return false
}

func (v *Validator) validateXML(ctx context.Context, d entity.Descriptor, raw []byte) error {
	buf, err := readAll(ctx, v.source, v.xsdPath)
	if err != nil {
		return &LoadError{Name: v.xsdPath, Err: err}
	}

	s, err := xsd.Parse(buf)
	if err != nil {
		return &LoadError{Name: v.xsdPath, Err: err}
	}
	defer s.Free()

	doc, err := libxml2.Parse(raw)
	if err != nil {
		return &ValidationError{
			Format:  payload.FormatXML,
			Reasons: []Reason{{Field: d.Name, Message: fmt.Sprintf("malformed XML: %v", err)}},
		}
	}
	defer doc.Free()

	if err := s.Validate(doc); err != nil {
		return &ValidationError{Format: payload.FormatXML, Reasons: xmlReasons(d, err)}
	}
	return nil
}

func xmlReasons(d entity.Descriptor, err error) []Reason {
	causes := []error{err}
	var multi interface{ Errors() []error }
	if errors.As(err, &multi) && len(multi.Errors()) > 0 {
		causes = multi.Errors()
	}

	reasons := make([]Reason, 0, len(causes))
	for _, cause := range causes {
		msg := strings.TrimSpace(cause.Error())
		field := d.Name
		if m := xmlElementPattern.FindStringSubmatch(msg); len(m) > 1 {
			field = m[1]
		}
		reasons = append(reasons, Reason{Field: field, Message: msg})
	}
	return reasons
}

func (v *Validator) validateJSON(ctx context.Context, d entity.Descriptor, raw []byte) error {
	buf, err := readAll(ctx, v.source, v.jsonPath)
	if err != nil {
		return &LoadError{Name: v.jsonPath, Err: err}
	}

	base := v.source.URL("")
	c := jsonschema.NewCompiler()
	// Relative $refs resolve against the document's URL; load them from the same source.
	c.LoadURL = func(u string) (io.ReadCloser, error) {
		if !strings.HasPrefix(u, base) {
			return nil, fmt.Errorf("reference %s is outside the schema root", u)
		}
		return v.source.Open(ctx, strings.TrimPrefix(u, base))
	}

	url := v.source.URL(v.jsonPath)
	if err := c.AddResource(url, bytes.NewReader(buf)); err != nil {
		return &LoadError{Name: v.jsonPath, Err: err}
	}

	sch, err := c.Compile(url + "#/definitions/" + d.Name)
	if err != nil {
		return &LoadError{Name: v.jsonPath, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var inst any
	if err := dec.Decode(&inst); err != nil {
		return &ValidationError{
			Format:  payload.FormatJSON,
			Reasons: []Reason{{Field: d.Name, Message: fmt.Sprintf("malformed JSON: %v", err)}},
		}
	}

	if err := sch.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return &LoadError{Name: v.jsonPath, Err: err}
		}
		return &ValidationError{Format: payload.FormatJSON, Reasons: jsonReasons(d, ve)}
	}
	return nil
}

func jsonReasons(d entity.Descriptor, ve *jsonschema.ValidationError) []Reason {
	var reasons []Reason
	for _, be := range ve.BasicOutput().Errors {
		// The first entry only summarises the ones below it.
		if strings.HasPrefix(be.Error, "doesn't validate with") {
			continue
		}
		field := strings.TrimPrefix(be.InstanceLocation, "/")
		if field == "" {
			field = d.Name
		}
		reasons = append(reasons, Reason{Field: field, Message: be.Error})
	}
	if len(reasons) == 0 {
		reasons = append(reasons, Reason{Field: d.Name, Message: ve.Error()})
	}
	return reasons
}
