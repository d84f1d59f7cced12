package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"

	"github.com/keywheel/keywheel/pkg/errors"
)

// JWK is a public JSON Web Key as published to the registry and the JWKS
// endpoint. Only the public members are represented; private key material
// is never encoded.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// EncodePublicJWK renders a public key as a JWK document.
func EncodePublicJWK(kid, algorithm string, pub crypto.PublicKey) (json.RawMessage, error) {
	jwk := JWK{Kid: kid, Alg: algorithm, Use: "sig"}

	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		jwk.Kty = "EC"
		switch k.Curve {
		case elliptic.P256():
			jwk.Crv = "P-256"
		case elliptic.P384():
			jwk.Crv = "P-384"
		default:
			return nil, errors.Newf(errors.CodeInternal, "unsupported elliptic curve %s", k.Curve.Params().Name)
		}
		size := (k.Curve.Params().BitSize + 7) / 8
		x := make([]byte, size)
		y := make([]byte, size)
		k.X.FillBytes(x)
		k.Y.FillBytes(y)
		jwk.X = base64.RawURLEncoding.EncodeToString(x)
		jwk.Y = base64.RawURLEncoding.EncodeToString(y)
	case *rsa.PublicKey:
		jwk.Kty = "RSA"
		jwk.N = base64.RawURLEncoding.EncodeToString(k.N.Bytes())
		jwk.E = base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.E)).Bytes())
	default:
		return nil, errors.Newf(errors.CodeInternal, "unsupported public key type %T", pub)
	}

	raw, err := json.Marshal(jwk)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to marshal jwk")
	}
	return raw, nil
}

// DecodePublicJWK parses a JWK document back into a verification key.
func DecodePublicJWK(raw json.RawMessage) (crypto.PublicKey, error) {
	var jwk JWK
	if err := json.Unmarshal(raw, &jwk); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidArgument, "failed to unmarshal jwk")
	}

	switch jwk.Kty {
	case "EC":
		var curve elliptic.Curve
		switch jwk.Crv {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		default:
			return nil, errors.Newf(errors.CodeInvalidArgument, "unsupported jwk curve %q", jwk.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidArgument, "invalid jwk x coordinate")
		}
		y, err := base64.RawURLEncoding.DecodeString(jwk.Y)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidArgument, "invalid jwk y coordinate")
		}
		return &ecdsa.PublicKey{
			Curve: curve,
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}, nil
	case "RSA":
		n, err := base64.RawURLEncoding.DecodeString(jwk.N)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidArgument, "invalid jwk modulus")
		}
		e, err := base64.RawURLEncoding.DecodeString(jwk.E)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidArgument, "invalid jwk exponent")
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(new(big.Int).SetBytes(e).Int64()),
		}, nil
	default:
		return nil, errors.Newf(errors.CodeInvalidArgument, "unsupported jwk key type %q", jwk.Kty)
	}
}
