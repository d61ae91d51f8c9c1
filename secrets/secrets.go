// Package secrets resolves the shared secret used between the web app and its
// functions. The secret may be configured in plain text or as a base64 KMS
// ciphertext.
package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/yeremiapane/diner-app/config"
)

// DecryptAPI is the slice of the KMS client the resolver needs.
type DecryptAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

type Resolver struct {
	kms DecryptAPI
}

func NewResolver(api DecryptAPI) *Resolver {
	return &Resolver{kms: api}
}

func NewResolverFromConfig(cfg aws.Config) *Resolver {
	return NewResolver(kms.NewFromConfig(cfg))
}

// Resolve prefers the encrypted value when both are set.
func (r *Resolver) Resolve(ctx context.Context, plain, encrypted string) (string, error) {
	encrypted = strings.TrimSpace(encrypted)
	if encrypted == "" {
		return plain, nil
	}
	if r == nil || r.kms == nil {
		return "", fmt.Errorf("encrypted secret configured but no KMS client")
	}

	blob, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decode encrypted secret: %w", err)
	}

	out, err := r.kms.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return "", fmt.Errorf("kms decrypt: %w", err)
	}
	return strings.TrimSpace(string(out.Plaintext)), nil
}

// InternalToken returns the shared secret between the app and its functions,
// decrypting INTERNAL_TOKEN_KMS when it is set.
func InternalToken(ctx context.Context, fc config.FunctionsConfig, ac config.AWSConfig) (string, error) {
	if strings.TrimSpace(fc.InternalTokenKMS) == "" {
		return fc.InternalToken, nil
	}
	awsCfg, err := config.LoadAWS(ctx, ac)
	if err != nil {
		return "", err
	}
	return NewResolverFromConfig(awsCfg).Resolve(ctx, fc.InternalToken, fc.InternalTokenKMS)
}
