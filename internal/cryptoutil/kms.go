package cryptoutil

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// kmsDecryptAPI is the subset of the KMS API needed to unwrap a secret.
type kmsDecryptAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSDecrypter unwraps ciphertext produced by `aws kms encrypt`.
type KMSDecrypter struct {
	client kmsDecryptAPI
	// keyID pins the key; empty lets KMS resolve it from the ciphertext.
	keyID string
}

func NewKMSDecrypter(client *kms.Client, keyID string) *KMSDecrypter {
	return &KMSDecrypter{client: client, keyID: keyID}
}

// DecryptBase64 decodes a base64 ciphertext blob and decrypts it
// with a symmetric KMS key.
func (d *KMSDecrypter) DecryptBase64(ctx context.Context, ciphertext string) ([]byte, error) {
	if d.client == nil {
		return nil, xerrors.New("kms client is not configured")
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return nil, xerrors.Wrap(err, "decode kms ciphertext")
	}
	if len(blob) == 0 {
		return nil, xerrors.New("kms ciphertext is empty")
	}

	in := &kms.DecryptInput{
		CiphertextBlob:      blob,
		EncryptionAlgorithm: kmstypes.EncryptionAlgorithmSpecSymmetricDefault,
	}
	if d.keyID != "" {
		in.KeyId = aws.String(d.keyID)
	}
	out, err := d.client.Decrypt(ctx, in)
	if err != nil {
		return nil, xerrors.Wrap(err, "kms decrypt")
	}
	if len(out.Plaintext) == 0 {
		return nil, xerrors.New("kms decrypt returned no plaintext")
	}
	return out.Plaintext, nil
}
