// Package secret resolves credentials such as model API keys from a plain
// value, an environment variable or a scy-encrypted resource.
package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/viant/scy"
	"github.com/viant/scy/cred"
	"github.com/viant/toolbox"
)

var ErrNotConfigured = errors.New("secret: not configured")

// Ref points at a secret. The first non-empty of Value, Env and URL wins.
type Ref struct {
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	Env   string `json:"env,omitempty" yaml:"env,omitempty"`
	// URL of a scy resource, e.g. ~/.secret/gemini.json
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty"`       // e.g. blowfish://default
	Target string `json:"target,omitempty" yaml:"target,omitempty"` // cred type: raw, basic, generic ...
	Field  string `json:"field,omitempty" yaml:"field,omitempty"`   // field of a structured secret
}

func (r *Ref) IsZero() bool {
	return r == nil || (r.Value == "" && r.Env == "" && r.URL == "")
}

// Service provides secret resolution using viant/scy
type Service struct {
	scyService *scy.Service
	lookupEnv  func(string) (string, bool)
}

func New() *Service {
	return &Service{
		scyService: scy.New(),
		lookupEnv:  os.LookupEnv,
	}
}

// Resolve returns the secret text referenced by ref.
func (s *Service) Resolve(ctx context.Context, ref *Ref) (string, error) {
	switch {
	case ref.IsZero():
		return "", ErrNotConfigured
	case ref.Value != "":
		return ref.Value, nil
	case ref.Env != "":
		value, ok := s.lookupEnv(ref.Env)
		if !ok || value == "" {
			return "", fmt.Errorf("secret: environment variable %v was empty: %w", ref.Env, ErrNotConfigured)
		}
		return value, nil
	}
	plain, data, err := s.Reveal(ctx, ref.URL, ref.Key, ref.Target)
	if err != nil {
		return "", err
	}
	if data == nil {
		return strings.TrimSpace(plain), nil
	}
	value, ok := lookupField(data, ref.Field)
	if !ok {
		return "", fmt.Errorf("secret: %v has no usable field %q", ref.URL, ref.Field)
	}
	return value, nil
}

// Reveal decrypts the resource at sourceURL. Structured secrets are returned
// as a map with empty keys removed; raw secrets as plain text.
func (s *Service) Reveal(ctx context.Context, sourceURL, key, target string) (string, map[string]interface{}, error) {
	var targetType interface{}
	if target != "" && target != "raw" {
		aType, err := cred.TargetType(target)
		if err != nil {
			return "", nil, fmt.Errorf("invalid target type '%s': %w", target, err)
		}
		if aType != nil {
			targetType = aType
		}
	}
	resource := scy.NewResource(targetType, sourceURL, key)
	secret, err := s.scyService.Load(ctx, resource)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load secret from %s: %w", sourceURL, err)
	}
	if !secret.IsPlain && secret.Target != nil {
		aMap := map[string]interface{}{}
		if err := toolbox.DefaultConverter.AssignConverted(&aMap, secret.Target); err != nil {
			return "", nil, fmt.Errorf("failed to convert secret data: %w", err)
		}
		return "", toolbox.DeleteEmptyKeys(aMap), nil
	}
	return secret.String(), nil, nil
}

var defaultFields = []string{"key", "apikey", "secret", "token", "password"}

func lookupField(data map[string]interface{}, field string) (string, bool) {
	candidates := defaultFields
	if field != "" {
		candidates = []string{field}
	}
	for _, candidate := range candidates {
		for k, v := range data {
			if !strings.EqualFold(k, candidate) {
				continue
			}
			if text := toolbox.AsString(v); text != "" {
				return text, true
			}
		}
	}
	return "", false
}
