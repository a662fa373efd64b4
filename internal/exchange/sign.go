package exchange

import (
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// signedClaims is the private-request JWT payload: access key, nonce, and a
// canonical hash of the query/body when one is present (spec.md §4.6
// "Signing"). It never gets logged — callers only ever see the resulting
// token string, never these claims.
type signedClaims struct {
	AccessKey     string `json:"access_key"`
	Nonce         string `json:"nonce"`
	QueryHash     string `json:"query_hash,omitempty"`
	QueryHashAlg  string `json:"query_hash_alg,omitempty"`
	jwt.RegisteredClaims
}

// signer builds per-request auth tokens from an access/secret key pair.
type signer struct {
	accessKey string
	secretKey string
}

func newSigner(accessKey, secretKey string) *signer {
	return &signer{accessKey: accessKey, secretKey: secretKey}
}

// Sign returns a bearer token for a request whose canonical query string is
// queryString (empty for requests with no params/body).
func (s *signer) Sign(queryString string) (string, error) {
	claims := signedClaims{
		AccessKey: s.accessKey,
		Nonce:     uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if queryString != "" {
		sum := sha512.Sum512([]byte(queryString))
		claims.QueryHash = hex.EncodeToString(sum[:])
		claims.QueryHashAlg = "SHA512"
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secretKey))
}

// canonicalQuery produces the query string a signed request should hash: the
// params sorted by key, matching the exchange's own canonicalization so the
// server recomputes the identical hash (url.Values.Encode already sorts by key).
func canonicalQuery(params url.Values) string {
	return params.Encode()
}
