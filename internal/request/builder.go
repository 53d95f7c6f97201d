package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/junction-dev/junction-go/internal/apierr"
)

// Validator is implemented by request bodies that check their own fields.
type Validator interface {
	Validate() error
}

// Builder produces Specs for the registered operations. It is safe for
// concurrent use.
type Builder struct {
	base *url.URL
	ops  map[OperationID]Operation
}

// NewBuilder returns a Builder for the API rooted at baseURL.
func NewBuilder(baseURL string) (*Builder, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, &apierr.ConfigurationError{Field: "base_url", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &apierr.ConfigurationError{Field: "base_url", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &apierr.ConfigurationError{Field: "base_url", Message: "missing host"}
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	ops := make(map[OperationID]Operation)
	for _, op := range Operations() {
		ops[op.ID] = op
	}
	return &Builder{base: u, ops: ops}, nil
}

// BaseURL returns a copy of the API root.
func (b *Builder) BaseURL() *url.URL {
	u := *b.base
	return &u
}

// Build validates params and body for op and returns the request Spec.
// Equal inputs always produce equal Specs with byte-identical bodies.
func (b *Builder) Build(id OperationID, params Params, body any) (*Spec, error) {
	op, ok := b.ops[id]
	if !ok || op.Path == "" {
		return nil, &apierr.ValidationError{
			Meta:    apierr.Meta{Operation: string(id)},
			Param:   "operation",
			Message: "unknown operation",
		}
	}
	invalid := func(param, format string, args ...any) error {
		return &apierr.ValidationError{
			Meta:    apierr.Meta{Operation: string(id)},
			Param:   param,
			Message: fmt.Sprintf(format, args...),
		}
	}

	known := make(map[string]Param, len(op.Params))
	for _, p := range op.Params {
		known[p.Name] = p
	}
	for name := range params {
		if _, ok := known[name]; !ok {
			return nil, invalid(name, "unknown parameter")
		}
	}

	path := op.Path
	query := url.Values{}
	for _, p := range op.Params {
		v, present := params[p.Name]
		if !present || v == nil {
			if p.Required {
				return nil, invalid(p.Name, "required parameter is missing")
			}
			continue
		}
		s, err := p.normalize(v)
		if err != nil {
			return nil, invalid(p.Name, "%v", err)
		}
		switch p.In {
		case InPath:
			if s == "." || s == ".." {
				return nil, invalid(p.Name, "dot segment %q is not a valid path parameter", s)
			}
			path = strings.Replace(path, "{"+p.Name+"}", url.PathEscape(s), 1)
		default:
			query.Set(p.Name, s)
		}
	}
	if strings.ContainsAny(path, "{}") {
		return nil, invalid("path", "unresolved template %s", op.Path)
	}

	spec := &Spec{
		Operation: id,
		Method:    op.Method,
		Path:      path,
		RawQuery:  encodeQuery(query),
		Header:    make(http.Header),
	}

	switch {
	case body == nil && op.Body == BodyRequired:
		return nil, invalid("body", "request body is required")
	case body != nil && op.Body == BodyNone:
		return nil, invalid("body", "operation takes no request body")
	case body != nil:
		raw, err := encodeBody(body)
		if err != nil {
			var ve *apierr.ValidationError
			if errors.As(err, &ve) {
				ve.Operation = string(id)
				return nil, ve
			}
			return nil, invalid("body", "%v", err)
		}
		spec.Body = raw
	}

	return spec, nil
}

// FromCursor turns a server-issued link into a Spec for op. Links must be
// relative or point at the base URL's scheme and host.
func (b *Builder) FromCursor(id OperationID, cursor string) (*Spec, error) {
	invalid := func(msg string) error {
		return &apierr.ValidationError{
			Meta:    apierr.Meta{Operation: string(id)},
			Param:   "cursor",
			Message: msg,
		}
	}
	op, ok := b.ops[id]
	if !ok {
		return nil, invalid("unknown operation")
	}
	if strings.TrimSpace(cursor) == "" {
		return nil, invalid("empty cursor")
	}

	u, err := url.Parse(cursor)
	if err != nil {
		return nil, invalid(err.Error())
	}
	if u.IsAbs() || u.Host != "" {
		if !strings.EqualFold(u.Scheme, b.base.Scheme) || !strings.EqualFold(u.Host, b.base.Host) {
			return nil, invalid(fmt.Sprintf("link points outside %s://%s", b.base.Scheme, b.base.Host))
		}
	}

	path := u.EscapedPath()
	if b.base.Path != "" && strings.HasPrefix(path, b.base.Path+"/") {
		path = strings.TrimPrefix(path, b.base.Path)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return &Spec{
		Operation: id,
		Method:    op.Method,
		Path:      path,
		RawQuery:  u.RawQuery,
		Header:    make(http.Header),
	}, nil
}

// encodeQuery is url.Values.Encode with brackets left readable.
func encodeQuery(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if buf.Len() > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(escapeQueryKey(k))
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(val))
		}
	}
	return buf.String()
}

func escapeQueryKey(k string) string {
	r := strings.NewReplacer("%5B", "[", "%5D", "]")
	return r.Replace(url.QueryEscape(k))
}

func encodeBody(body any) ([]byte, error) {
	if v, ok := body.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	if raw, ok := body.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("body is not valid JSON")
		}
		return bytes.Clone(raw), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
