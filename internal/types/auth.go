package types

import (
	"errors"
	"fmt"
	"strings"
)

const maskedSecret = "*** masked ***"

// Secret holds sensitive values. It prints masked under fmt and logrus;
// call Expose to read the value.
type Secret string

func (s Secret) String() string   { return maskedSecret }
func (s Secret) GoString() string { return maskedSecret }
func (s Secret) Expose() string   { return string(s) }
func (s Secret) IsEmpty() bool    { return s == "" }

// ConnectorAuthType is a closed sum type over credential shapes.
type ConnectorAuthType interface {
	AuthType() string
	isConnectorAuthType()
}

type HeaderKey struct {
	APIKey Secret
}

type BodyKey struct {
	APIKey Secret
	Key1   Secret
}

type SignatureKey struct {
	APIKey    Secret
	Key1      Secret
	APISecret Secret
}

type MultiAuthKey struct {
	APIKey    Secret
	Key1      Secret
	APISecret Secret
	Key2      Secret
}

type NoKey struct{}

func (HeaderKey) AuthType() string    { return "HeaderKey" }
func (BodyKey) AuthType() string      { return "BodyKey" }
func (SignatureKey) AuthType() string { return "SignatureKey" }
func (MultiAuthKey) AuthType() string { return "MultiAuthKey" }
func (NoKey) AuthType() string        { return "NoKey" }

func (HeaderKey) isConnectorAuthType()    {}
func (BodyKey) isConnectorAuthType()      {}
func (SignatureKey) isConnectorAuthType() {}
func (MultiAuthKey) isConnectorAuthType() {}
func (NoKey) isConnectorAuthType()        {}

// AllAuthTypeSamples returns one value of each auth variant.
func AllAuthTypeSamples() []ConnectorAuthType {
	return []ConnectorAuthType{
		HeaderKey{APIKey: "api_key"},
		BodyKey{APIKey: "api_key", Key1: "key1"},
		SignatureKey{APIKey: "api_key", Key1: "key1", APISecret: "api_secret"},
		MultiAuthKey{APIKey: "api_key", Key1: "key1", APISecret: "api_secret", Key2: "key2"},
		NoKey{},
	}
}

var ErrInvalidAuthConfig = errors.New("invalid connector auth config")

// ParseConnectorAuthType builds an auth value from flat configuration, e.g.
// {"auth_type": "BodyKey", "api_key": "...", "key1": "..."}.
func ParseConnectorAuthType(fields map[string]string) (ConnectorAuthType, error) {
	get := func(name string) (Secret, error) {
		v := strings.TrimSpace(fields[name])
		if v == "" {
			return "", fmt.Errorf("%w: %s is required for %s", ErrInvalidAuthConfig, name, fields["auth_type"])
		}
		return Secret(v), nil
	}
	var errs []error
	must := func(name string) Secret {
		v, err := get(name)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	var auth ConnectorAuthType
	switch strings.ToLower(fields["auth_type"]) {
	case "headerkey", "header_key":
		auth = HeaderKey{APIKey: must("api_key")}
	case "bodykey", "body_key":
		auth = BodyKey{APIKey: must("api_key"), Key1: must("key1")}
	case "signaturekey", "signature_key":
		auth = SignatureKey{APIKey: must("api_key"), Key1: must("key1"), APISecret: must("api_secret")}
	case "multiauthkey", "multi_auth_key":
		auth = MultiAuthKey{APIKey: must("api_key"), Key1: must("key1"), APISecret: must("api_secret"), Key2: must("key2")}
	case "nokey", "no_key":
		auth = NoKey{}
	default:
		return nil, fmt.Errorf("%w: unknown auth_type %q", ErrInvalidAuthConfig, fields["auth_type"])
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return auth, nil
}
