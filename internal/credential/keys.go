package credential

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"attestor/pkg/platform/sentinel"
)

// GenerateKey creates a new Ed25519 signing key.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return priv, nil
}

// MarshalPrivateJWK renders key as an OKP JWK with kid and alg set.
func MarshalPrivateJWK(key ed25519.PrivateKey) ([]byte, error) {
	k, err := toJWK(key)
	if err != nil {
		return nil, err
	}
	return json.Marshal(k)
}

// SaveKey writes key as a private JWK readable only by the owner.
func SaveKey(path string, key ed25519.PrivateKey) error {
	b, err := MarshalPrivateJWK(key)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// LoadKey reads a private JWK written by SaveKey.
func LoadKey(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("signing key %s: %w", path, sentinel.ErrNotFound)
		}
		return nil, err
	}
	k, err := jwk.ParseKey(b)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	var priv ed25519.PrivateKey
	if err := k.Raw(&priv); err != nil {
		return nil, fmt.Errorf("signing key is not ed25519: %w", err)
	}
	return priv, nil
}

// LoadOrGenerateKey loads path, or generates and persists a key when path
// does not exist. An empty path yields an ephemeral key.
func LoadOrGenerateKey(path string) (ed25519.PrivateKey, bool, error) {
	if path == "" {
		key, err := GenerateKey()
		return key, true, err
	}
	key, err := LoadKey(path)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, err
	}
	if key, err = GenerateKey(); err != nil {
		return nil, false, err
	}
	if err := SaveKey(path, key); err != nil {
		return nil, false, fmt.Errorf("persist signing key: %w", err)
	}
	return key, true, nil
}

// PublicJWKS publishes the verification key as a JWK set.
func PublicJWKS(key ed25519.PublicKey) (jwk.Set, error) {
	k, err := toJWK(key)
	if err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	if err := set.AddKey(k); err != nil {
		return nil, err
	}
	return set, nil
}

func toJWK(raw any) (jwk.Key, error) {
	k, err := jwk.FromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("build jwk: %w", err)
	}
	if err := k.Set(jwk.KeyIDKey, KeyFragment); err != nil {
		return nil, err
	}
	if err := k.Set(jwk.AlgorithmKey, jwa.EdDSA); err != nil {
		return nil, err
	}
	return k, nil
}

// StaticResolver trusts a fixed set of keys by verification method.
type StaticResolver map[string]ed25519.PublicKey

func (r StaticResolver) Resolve(_ context.Context, verificationMethod string) (ed25519.PublicKey, error) {
	if key, ok := r[verificationMethod]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("verification method %q: %w", verificationMethod, sentinel.ErrNotFound)
}

// SetResolver trusts the keys of a JWK set, matched by the key id in the
// verification method fragment.
type SetResolver struct {
	Set jwk.Set
}

func (r SetResolver) Resolve(_ context.Context, verificationMethod string) (ed25519.PublicKey, error) {
	return lookupKey(r.Set, verificationMethod)
}

// RemoteResolver trusts the keys published at a JWKS URL, refreshed in the
// background.
type RemoteResolver struct {
	cache *jwk.Cache
	url   string
}

// NewRemoteResolver registers url with a refreshing cache. The context bounds
// the cache's background refresh goroutine.
func NewRemoteResolver(ctx context.Context, url string, minRefresh time.Duration) (*RemoteResolver, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(url, jwk.WithMinRefreshInterval(minRefresh)); err != nil {
		return nil, fmt.Errorf("register jwks %s: %w", url, err)
	}
	return &RemoteResolver{cache: cache, url: url}, nil
}

func (r *RemoteResolver) Resolve(ctx context.Context, verificationMethod string) (ed25519.PublicKey, error) {
	set, err := r.cache.Get(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w: %w", sentinel.ErrUnavailable, err)
	}
	return lookupKey(set, verificationMethod)
}

func lookupKey(set jwk.Set, verificationMethod string) (ed25519.PublicKey, error) {
	kid := verificationMethod
	if i := strings.LastIndex(verificationMethod, "#"); i >= 0 {
		kid = verificationMethod[i+1:]
	}
	k, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("key %q: %w", kid, sentinel.ErrNotFound)
	}
	var pub ed25519.PublicKey
	if err := k.Raw(&pub); err != nil {
		// Private keys in a trusted set are tolerated.
		var priv ed25519.PrivateKey
		if err := k.Raw(&priv); err != nil {
			return nil, fmt.Errorf("key %q is not ed25519: %w", kid, err)
		}
		pub = priv.Public().(ed25519.PublicKey)
	}
	return pub, nil
}
