package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/store"
)

const tokenFetchTimeout = 30 * time.Second

// maxTokenSize bounds token files.
const maxTokenSize = 1 << 20

type tokenScheme string

const (
	schemeLocal tokenScheme = "local"
	schemeFile  tokenScheme = "file"
	schemeHTTP  tokenScheme = "http"
	schemeS3    tokenScheme = "s3"
)

func detectScheme(path string) tokenScheme {
	lowerPath := strings.ToLower(path)
	switch {
	case strings.HasPrefix(lowerPath, "s3://"):
		return schemeS3
	case strings.HasPrefix(lowerPath, "https://"), strings.HasPrefix(lowerPath, "http://"):
		return schemeHTTP
	case strings.HasPrefix(lowerPath, "file://"):
		return schemeFile
	default:
		return schemeLocal
	}
}

// Credentials resolves the token, username and commit identity presented
// when opening a session.
func (c Config) Credentials(ctx context.Context) (store.Credentials, error) {
	token, err := c.LoadToken(ctx)
	if err != nil {
		return store.Credentials{}, err
	}

	claims := tokenClaims(token)
	username := c.Username
	if username == "" {
		username = claims.username()
	}

	return store.Credentials{
		Token:    token,
		Username: username,
		Identity: core.Identity{Name: username, Email: claims.email()},
	}, nil
}

// LoadToken returns the inline token or the contents of the token file,
// trimmed of surrounding whitespace. No token is not an error.
func (c Config) LoadToken(ctx context.Context) (string, error) {
	if c.Token != "" || c.TokenFile == "" {
		return strings.TrimSpace(c.Token), nil
	}

	ctx, cancel := context.WithTimeout(ctx, tokenFetchTimeout)
	defer cancel()

	reader, err := openTokenReader(ctx, c.TokenFile, c.S3)
	if err != nil {
		return "", fmt.Errorf("token file %s: %w", c.TokenFile, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxTokenSize))
	if err != nil {
		return "", fmt.Errorf("token file %s: %w", c.TokenFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func openTokenReader(ctx context.Context, path string, cfg S3Config) (io.ReadCloser, error) {
	switch detectScheme(path) {
	case schemeHTTP:
		return openHTTPReader(ctx, path)
	case schemeS3:
		return openS3Reader(ctx, path, cfg)
	case schemeFile:
		return os.Open(strings.TrimPrefix(path, "file://"))
	default:
		return os.Open(path)
	}
}

func openHTTPReader(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// parseS3URL splits s3://bucket/key.
func parseS3URL(url string) (bucket, key string, err error) {
	path := strings.TrimPrefix(url, "s3://")
	bucket, key, ok := strings.Cut(path, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URL: %s", url)
	}
	return bucket, key, nil
}

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-compatible services address buckets by path
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func openS3Reader(ctx context.Context, url string, cfg S3Config) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(url)
	if err != nil {
		return nil, err
	}

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get S3 object: %w", err)
	}
	return resp.Body, nil
}

type claimSet jwt.MapClaims

// tokenClaims reads the claims of a JWT without verifying it; the store
// verifies. Tokens that are not JWTs have no claims.
func tokenClaims(token string) claimSet {
	if token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claimSet(claims)
}

func (c claimSet) str(names ...string) string {
	for _, name := range names {
		if s, ok := c[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (c claimSet) username() string {
	return c.str("name", "preferred_username", "sub", "email")
}

func (c claimSet) email() string {
	return c.str("email")
}
