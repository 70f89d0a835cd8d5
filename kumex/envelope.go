package kumex

import (
	"bytes"
	"encoding/json"

	"kumex-futures-sdk/transport"
)

// SuccessCode is the envelope code of a successful call
const SuccessCode = "200000"

// Envelope is the {"code","msg","data"} wrapper around every REST payload
type Envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// Successful reports whether the envelope carries the success code
func (e *Envelope) Successful() bool {
	return e.Code == SuccessCode
}

// ReadData decodes the data field into v
func (e *Envelope) ReadData(v interface{}) error {
	if v == nil || len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// DecodeEnvelope parses resp as an envelope, returning an APIError when the
// code is not the success code
func DecodeEnvelope(resp *transport.Response) (*Envelope, error) {
	var env Envelope
	if err := resp.Decode(&env); err != nil {
		return nil, &SerializationError{Body: resp.Body(), Err: err}
	}
	if !env.Successful() {
		return &env, &APIError{Code: env.Code, Message: env.Message}
	}
	return &env, nil
}

func decodeEnvelope(resp *transport.Response, out interface{}) error {
	env, err := DecodeEnvelope(resp)
	if err != nil {
		return err
	}
	if err := env.ReadData(out); err != nil {
		return &SerializationError{Body: resp.Body(), Err: err}
	}
	return nil
}
