// Package secrets resolves provider credentials from a secrets_ref.
//
// Only the env: scheme is supported. With secrets_ref "env:JOBHUNTER" and
// credentials_ref "linkedin", the key "client_id" is read from
// JOBHUNTER_LINKEDIN_CLIENT_ID, or from the absolute path named by
// JOBHUNTER_LINKEDIN_CLIENT_ID_FILE when that variable is set.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
)

// ErrMissing is returned when a credential key has no value.
var ErrMissing = errors.New("secret not configured")

// Resolver looks up credentials by credentials_ref and key.
type Resolver interface {
	Lookup(ref, key string) (string, error)
}

// EnvResolver reads credentials from the process environment.
type EnvResolver struct {
	prefix   string
	getenv   func(string) string
	readFile func(string) ([]byte, error)
}

// NewEnvResolver parses secretsRef, which must use the env: scheme.
func NewEnvResolver(secretsRef string) (*EnvResolver, error) {
	prefix, ok := strings.CutPrefix(secretsRef, "env:")
	if !ok {
		return nil, apperr.Configf("secrets_ref", "unsupported scheme in %q", secretsRef)
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "_")
	return &EnvResolver{prefix: prefix, getenv: os.Getenv, readFile: os.ReadFile}, nil
}

// WithLookup swaps the environment source; tests use it to avoid touching
// the real process environment.
func (r *EnvResolver) WithLookup(getenv func(string) string) *EnvResolver {
	cp := *r
	cp.getenv = getenv
	return &cp
}

// VarName returns the environment variable holding ref/key.
func (r *EnvResolver) VarName(ref, key string) string {
	parts := []string{envToken(ref), envToken(key)}
	if r.prefix != "" {
		parts = append([]string{strings.ToUpper(r.prefix)}, parts...)
	}
	return strings.Join(parts, "_")
}

// Lookup returns the trimmed secret. The _FILE variant takes precedence and
// must name an absolute path.
func (r *EnvResolver) Lookup(ref, key string) (string, error) {
	name := r.VarName(ref, key)

	if file := strings.TrimSpace(r.getenv(name + "_FILE")); file != "" {
		if !filepath.IsAbs(file) {
			return "", apperr.Configf(name+"_FILE", "must be an absolute path, got %q", file)
		}
		data, err := r.readFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty: %w", name, file, ErrMissing)
		}
		return secret, nil
	}

	secret := strings.TrimSpace(r.getenv(name))
	if secret == "" {
		return "", fmt.Errorf("%s: %w", name, ErrMissing)
	}
	return secret, nil
}

// Credentials resolves every key for ref. ok is false when any key is
// missing, which callers treat as "run in fixture mode".
func Credentials(r Resolver, ref string, keys ...string) (creds map[string]string, ok bool, err error) {
	creds = make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := r.Lookup(ref, k)
		if errors.Is(err, ErrMissing) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		creds[k] = v
	}
	return creds, true, nil
}

func envToken(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(s)
}

// Static is a fixed in-memory Resolver keyed by "ref/key".
type Static map[string]string

func (s Static) Lookup(ref, key string) (string, error) {
	v := strings.TrimSpace(s[ref+"/"+key])
	if v == "" {
		return "", fmt.Errorf("%s/%s: %w", ref, key, ErrMissing)
	}
	return v, nil
}
