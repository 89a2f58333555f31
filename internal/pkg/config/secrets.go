// internal/pkg/config/secrets.go
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Credential keys looked up in the secret store.
const (
	SecretDBPassword   = "DB_PASSWORD"
	SecretJWTSecret    = "JWT_SECRET"
	SecretSMTPPassword = "SMTP_PASSWORD"
)

// SecretStore resolves credentials by key. Keys the store does not hold are
// absent from the result; that is not an error.
type SecretStore interface {
	Lookup(ctx context.Context, keys ...string) (map[string]string, error)
}

// secretTargets maps each credential to the config field it overrides.
var secretTargets = map[string]func(*Config) *string{
	SecretDBPassword:   func(c *Config) *string { return &c.Database.Password },
	SecretJWTSecret:    func(c *Config) *string { return &c.Security.JWTSecret },
	SecretSMTPPassword: func(c *Config) *string { return &c.SMTP.Password },
}

// ApplySecrets overlays the database, JWT and SMTP credentials held by store
// onto cfg and revalidates it. Empty or missing values keep the loaded ones.
func ApplySecrets(ctx context.Context, cfg *Config, store SecretStore) error {
	keys := make([]string, 0, len(secretTargets))
	for k := range secretTargets {
		keys = append(keys, k)
	}

	values, err := store.Lookup(ctx, keys...)
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}
	for k, v := range values {
		if target, ok := secretTargets[k]; ok && v != "" {
			*target(cfg) = v
		}
	}
	return cfg.Validate()
}

// NewSecretStore returns the Secrets Manager store when AWS_SECRET_NAME is
// set and the environment otherwise.
func NewSecretStore(ctx context.Context, cfg *Config, logger *slog.Logger) (SecretStore, error) {
	if cfg.App.SecretName == "" {
		return EnvSecretStore{}, nil
	}
	return NewAWSSecretStore(ctx, cfg.Storage.Region, cfg.App.SecretName, logger)
}

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretStore reads one JSON secret document from AWS Secrets Manager and
// serves lookups from a snapshot until it is older than ttl.
type AWSSecretStore struct {
	client     secretsAPI
	secretName string
	ttl        time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	snapshot  map[string]string
	fetchedAt time.Time
}

// NewAWSSecretStore loads the default AWS config for region.
func NewAWSSecretStore(ctx context.Context, region, secretName string, logger *slog.Logger) (*AWSSecretStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newAWSSecretStore(secretsmanager.NewFromConfig(awsCfg), secretName, 5*time.Minute, logger), nil
}

func newAWSSecretStore(client secretsAPI, secretName string, ttl time.Duration, logger *slog.Logger) *AWSSecretStore {
	return &AWSSecretStore{
		client:     client,
		secretName: secretName,
		ttl:        ttl,
		logger:     logger.With(slog.String("secret_name", secretName)),
	}
}

// Lookup returns the requested keys from the current snapshot, fetching a
// new one first when the snapshot is stale.
func (s *AWSSecretStore) Lookup(ctx context.Context, keys ...string) (map[string]string, error) {
	doc, err := s.document(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			out[k] = v
		} else {
			s.logger.Debug("secret key not present", slog.String("key", k))
		}
	}
	return out, nil
}

// Invalidate drops the snapshot so the next Lookup fetches again.
func (s *AWSSecretStore) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

// document holds the lock across the fetch so concurrent lookups on a stale
// snapshot issue a single request.
func (s *AWSSecretStore) document(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot != nil && time.Since(s.fetchedAt) < s.ttl {
		return s.snapshot, nil
	}

	s.logger.Info("fetching secrets from AWS Secrets Manager")
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(s.secretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret value: %w", err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", s.secretName)
	}

	doc := map[string]string{}
	if err := json.Unmarshal([]byte(*result.SecretString), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}

	s.snapshot = doc
	s.fetchedAt = time.Now()
	return doc, nil
}

// EnvSecretStore reads credentials from the process environment.
type EnvSecretStore struct{}

// Lookup returns the non-empty environment variables among keys.
func (EnvSecretStore) Lookup(_ context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			out[k] = v
		}
	}
	return out, nil
}
