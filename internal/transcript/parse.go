package transcript

import (
	"bytes"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"
)

// Fields is a flat view of a parsed body: key to scalar value.
type Fields map[string]string

// ParseStrategy turns a raw body into Fields. ok is false when the body is
// not in the strategy's format; the content type is a hint only.
type ParseStrategy struct {
	Name  string
	Parse func(body []byte, contentType string) (fields Fields, ok bool)
}

var (
	JSONStrategy      = ParseStrategy{Name: "json", Parse: parseJSON}
	FormStrategy      = ParseStrategy{Name: "form", Parse: parseForm}
	MultipartStrategy = ParseStrategy{Name: "multipart", Parse: parseMultipart}
)

// DefaultStrategies is the order used when a Normalizer has none configured.
// JSON is tried first regardless of the declared content type.
func DefaultStrategies() []ParseStrategy {
	return []ParseStrategy{JSONStrategy, FormStrategy, MultipartStrategy}
}

// parseJSON accepts any JSON object, including an empty one. Nested objects,
// arrays and nulls are dropped; numbers keep their literal form.
func parseJSON(body []byte, _ string) (Fields, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}

	fields := make(Fields, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = strconv.FormatBool(val)
		}
	}
	return fields, true
}

// parseForm treats ';' as a literal character and keeps every pair that
// decodes when others in the body are malformed. Bodies that open like JSON
// are never forms.
func parseForm(body []byte, _ string) (Fields, bool) {
	text := strings.TrimSpace(string(body))
	if text == "" || !strings.Contains(text, "=") {
		return nil, false
	}
	if text[0] == '{' || text[0] == '[' {
		return nil, false
	}
	values, _ := url.ParseQuery(strings.ReplaceAll(text, ";", "%3B"))
	fields := make(Fields, len(values))
	for k, v := range values {
		if k == "" || len(v) == 0 {
			continue
		}
		fields[k] = v[0]
	}
	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

func parseMultipart(body []byte, contentType string) (Fields, bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return nil, false
	}
	form, err := multipart.NewReader(bytes.NewReader(body), params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		return nil, false
	}
	defer func() { _ = form.RemoveAll() }()

	fields := make(Fields, len(form.Value))
	for k, v := range form.Value {
		if len(v) == 0 {
			continue
		}
		fields[k] = v[0]
	}
	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}
