// Package kms unseals the attestor's oracle signing key at startup. The
// key is stored encrypted at rest; only the attestor process ever sees
// the plaintext, and it immediately seals it into locked memory.
package kms

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// decryptAPI is the slice of the AWS KMS client the package uses.
type decryptAPI interface {
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Client decrypts oracle key material through AWS KMS.
type Client struct {
	api decryptAPI
}

// New creates a KMS Client. If localStackEndpoint is non-empty, the client
// targets that endpoint with dummy credentials (for local development).
// Otherwise it uses the AWS default credential chain (IAM Roles in production).
func New(ctx context.Context, region, localStackEndpoint string) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(region))

	if localStackEndpoint != "" {
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("kms: load aws config: %w", err)
	}

	var kmsOpts []func(*kms.Options)
	if localStackEndpoint != "" {
		kmsOpts = append(kmsOpts, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(localStackEndpoint)
		})
	}

	return &Client{
		api: kms.NewFromConfig(cfg, kmsOpts...),
	}, nil
}

// Decrypt sends the ciphertext blob to KMS and returns the decrypted
// oracle key bytes. The caller must seal or zero the returned bytes.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	out, err := c.api.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("kms: decrypt: %w", err)
	}
	return out.Plaintext, nil
}

// UnsealKey reads the encrypted key material at path, decrypts it through
// KMS, and hands the plaintext to seal. The plaintext is zeroed before
// UnsealKey returns, whether seal succeeds or not, so seal must copy or
// lock whatever it keeps.
func (c *Client) UnsealKey(ctx context.Context, path string, seal func([]byte) error) error {
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("kms: read key ciphertext: %w", err)
	}

	keyBytes, err := c.Decrypt(ctx, ciphertext)
	if err != nil {
		return err
	}
	defer func() {
		for i := range keyBytes {
			keyBytes[i] = 0
		}
	}()

	return seal(keyBytes)
}
