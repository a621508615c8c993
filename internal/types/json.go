package types

import (
	"bytes"
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// structpb values have no encoding/json support of their own, so the records
// that carry them route those fields through protojson.

func marshalValue(v *structpb.Value) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return protojson.Marshal(v)
}

func unmarshalValue(raw json.RawMessage) (*structpb.Value, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	v := &structpb.Value{}
	if err := protojson.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

type paymentIntentAlias PaymentIntent

type paymentIntentJSON struct {
	*paymentIntentAlias
	Metadata                  json.RawMessage `json:"metadata,omitempty"`
	AllowedPaymentMethodTypes json.RawMessage `json:"allowed_payment_method_types,omitempty"`
	ConnectorMetadata         json.RawMessage `json:"connector_metadata,omitempty"`
	FeatureMetadata           json.RawMessage `json:"feature_metadata,omitempty"`
}

func (p PaymentIntent) MarshalJSON() ([]byte, error) {
	out := paymentIntentJSON{paymentIntentAlias: (*paymentIntentAlias)(&p)}
	var err error
	if out.Metadata, err = marshalValue(p.Metadata); err != nil {
		return nil, err
	}
	if out.AllowedPaymentMethodTypes, err = marshalValue(p.AllowedPaymentMethodTypes); err != nil {
		return nil, err
	}
	if out.ConnectorMetadata, err = marshalValue(p.ConnectorMetadata); err != nil {
		return nil, err
	}
	if out.FeatureMetadata, err = marshalValue(p.FeatureMetadata); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (p *PaymentIntent) UnmarshalJSON(b []byte) error {
	in := paymentIntentJSON{paymentIntentAlias: (*paymentIntentAlias)(p)}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var err error
	if p.Metadata, err = unmarshalValue(in.Metadata); err != nil {
		return err
	}
	if p.AllowedPaymentMethodTypes, err = unmarshalValue(in.AllowedPaymentMethodTypes); err != nil {
		return err
	}
	if p.ConnectorMetadata, err = unmarshalValue(in.ConnectorMetadata); err != nil {
		return err
	}
	p.FeatureMetadata, err = unmarshalValue(in.FeatureMetadata)
	return err
}

type paymentAttemptAlias PaymentAttempt

type paymentAttemptJSON struct {
	*paymentAttemptAlias
	ConnectorMetadata json.RawMessage `json:"connector_metadata,omitempty"`
}

func (a PaymentAttempt) MarshalJSON() ([]byte, error) {
	out := paymentAttemptJSON{paymentAttemptAlias: (*paymentAttemptAlias)(&a)}
	var err error
	if out.ConnectorMetadata, err = marshalValue(a.ConnectorMetadata); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (a *PaymentAttempt) UnmarshalJSON(b []byte) error {
	in := paymentAttemptJSON{paymentAttemptAlias: (*paymentAttemptAlias)(a)}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var err error
	a.ConnectorMetadata, err = unmarshalValue(in.ConnectorMetadata)
	return err
}

// JSONValue carries a structpb value in request bodies decoded with encoding/json.
type JSONValue struct {
	*structpb.Value
}

func (v JSONValue) MarshalJSON() ([]byte, error) {
	if v.Value == nil {
		return []byte("null"), nil
	}
	return protojson.Marshal(v.Value)
}

func (v *JSONValue) UnmarshalJSON(b []byte) error {
	val, err := unmarshalValue(b)
	if err != nil {
		return err
	}
	v.Value = val
	return nil
}

// Get returns the wrapped value; a nil receiver yields nil.
func (v *JSONValue) Get() *structpb.Value {
	if v == nil {
		return nil
	}
	return v.Value
}
