package jwks

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeySet fetches and caches the identity provider's RSA public keys, keyed
// by kid. Tokens are RS256-signed by an external issuer; this service never
// holds signing material.
type KeySet struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func New(url string) *KeySet {
	return &KeySet{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		ttl:    time.Hour,
	}
}

type jwkDoc struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Keyfunc plugs into jwt.ParseWithClaims. Only RS256 is accepted.
func (ks *KeySet) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("token has no kid header")
	}
	return ks.key(kid)
}

func (ks *KeySet) key(kid string) (*rsa.PublicKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	stale := time.Since(ks.fetchedAt) > ks.ttl
	if key, ok := ks.keys[kid]; ok && !stale {
		return key, nil
	}

	// unknown kid forces a refetch: the provider may have rotated keys
	if err := ks.refreshLocked(); err != nil {
		// serve from the stale cache if the kid is at least known
		if key, ok := ks.keys[kid]; ok {
			return key, nil
		}
		return nil, err
	}

	if key, ok := ks.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("no key with kid %q", kid)
}

func (ks *KeySet) refreshLocked() error {
	resp, err := ks.client.Get(ks.url)
	if err != nil {
		return fmt.Errorf("jwks fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks fetch: status %d", resp.StatusCode)
	}

	var doc jwkDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("jwks decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSA(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks document held no usable RSA keys")
	}

	ks.keys = keys
	ks.fetchedAt = time.Now()
	return nil
}

func parseRSA(k jwkKey) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, errors.New("zero exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
