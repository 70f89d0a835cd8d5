package kumex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"kumex-futures-sdk/transport"

	"github.com/shopspring/decimal"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// Request is the builder for a single call. The canonical request path and
// body are computed once in NewRequest so that what gets signed is exactly
// what gets sent.
type Request struct {
	method      string
	baseURI     string
	requestPath string
	body        string
	headers     map[string]string
}

// NewRequest validates the method and base URI and encodes params: into a
// sorted query string for GET and DELETE, into a JSON body otherwise.
// Nil-valued params are dropped.
func NewRequest(method, baseURI, uri string, params map[string]interface{}) (*Request, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !allowedMethods[method] {
		return nil, &ConfigurationError{Field: "method", Err: fmt.Errorf("unsupported HTTP method %q", method)}
	}

	baseURI = strings.TrimRight(strings.TrimSpace(baseURI), "/")
	base, err := url.Parse(baseURI)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, &ConfigurationError{Field: "base URI", Err: fmt.Errorf("%q is not an absolute http(s) URL", baseURI)}
	}

	path, rawQuery, _ := strings.Cut(uri, "?")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	r := &Request{
		method:  method,
		baseURI: baseURI,
		headers: make(map[string]string),
	}

	if usesQuery(method) {
		query, err := encodeQuery(rawQuery, params)
		if err != nil {
			return nil, &ConfigurationError{Field: "params", Err: err}
		}
		r.requestPath = path
		if query != "" {
			r.requestPath += "?" + query
		}
		return r, nil
	}

	r.requestPath = path
	if rawQuery != "" {
		r.requestPath += "?" + rawQuery
	}
	body, err := encodeBody(params)
	if err != nil {
		return nil, &ConfigurationError{Field: "params", Err: err}
	}
	r.body = body
	return r, nil
}

// Method returns the upper-case HTTP method
func (r *Request) Method() string { return r.method }

// RequestPath returns the path plus query string, the form used in signing
func (r *Request) RequestPath() string { return r.requestPath }

// Body returns the encoded JSON body, empty when there is none
func (r *Request) Body() string { return r.body }

// URL returns the absolute URL
func (r *Request) URL() string { return r.baseURI + r.requestPath }

// SetHeader sets a header, replacing any existing key that differs only in case
func (r *Request) SetHeader(key, value string) {
	for existing := range r.headers {
		if existing != key && strings.EqualFold(existing, key) {
			delete(r.headers, existing)
		}
	}
	r.headers[key] = value
}

// SetHeaders sets each header in turn
func (r *Request) SetHeaders(headers map[string]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.SetHeader(k, headers[k])
	}
}

// Header returns a header value, matched case-insensitively
func (r *Request) Header(key string) string {
	if v, ok := r.headers[key]; ok {
		return v
	}
	for k, v := range r.headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Build finalizes the request into its immutable wire form
func (r *Request) Build() *transport.Request {
	var body []byte
	if r.body != "" {
		body = []byte(r.body)
	}
	return transport.NewRequest(r.method, r.URL(), r.headers, body)
}

func usesQuery(method string) bool {
	return method == http.MethodGet || method == http.MethodDelete
}

func encodeQuery(rawQuery string, params map[string]interface{}) (string, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid query string: %w", err)
	}
	for k, v := range params {
		if isNil(v) {
			continue
		}
		s, ok := formatValue(v)
		if !ok {
			continue
		}
		values.Set(k, s)
	}
	// Encode sorts by key
	return values.Encode(), nil
}

func encodeBody(params map[string]interface{}) (string, error) {
	payload := make(map[string]interface{}, len(params))
	for k, v := range params {
		if isNil(v) {
			continue
		}
		payload[k] = v
	}
	if len(payload) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("error encoding request body: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// isNil reports untyped nil and nil pointers, maps, slices and interfaces
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// formatValue renders a query value. Slices and arrays are joined with commas.
// The second result is false for typed nil pointers, which are dropped like
// untyped nil.
func formatValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case decimal.Decimal:
		return val.String(), true
	case *decimal.Decimal:
		if val == nil {
			return "", false
		}
		return val.String(), true
	case []string:
		return strings.Join(val, ","), true
	case json.Number:
		return val.String(), true
	case fmt.Stringer:
		return val.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i).Interface()
			if isNil(elem) {
				continue
			}
			s, ok := formatValue(elem)
			if !ok {
				continue
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	case reflect.Ptr:
		if rv.IsNil() {
			return "", false
		}
		return formatValue(rv.Elem().Interface())
	}
	return fmt.Sprint(v), true
}
