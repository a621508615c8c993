package adapter

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/yourorg/payment-router/internal/types"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// Request is a fully built outbound call to a connector.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Response is the raw result of a connector call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func NewRequest(method, endpoint string) *Request {
	return &Request{Method: method, URL: endpoint, Headers: http.Header{}}
}

func (r *Request) Header(key, value string) *Request {
	r.Headers.Set(key, value)
	return r
}

// JSONBody sets a JSON body. Encoding failures surface as RequestEncodingFailed.
func (r *Request) JSONBody(v any) (*Request, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, types.RequestEncodingFailed(err)
	}
	r.Body = b
	r.Headers.Set("Content-Type", ContentTypeJSON)
	return r, nil
}

func (r *Request) FormBody(values url.Values) *Request {
	r.Body = []byte(values.Encode())
	r.Headers.Set("Content-Type", ContentTypeForm)
	return r
}

// ParseJSON decodes a connector response body into T.
func ParseJSON[T any](res *Response) (T, error) {
	var v T
	if err := json.Unmarshal(res.Body, &v); err != nil {
		return v, types.ResponseDeserializationFailed(err)
	}
	return v, nil
}
