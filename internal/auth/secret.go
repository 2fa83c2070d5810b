package auth

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// ParameterGetter is the subset of the SSM client used to load the secret.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecretFromSSM reads a SecureString parameter holding the token
// signing secret.
func LoadSecretFromSSM(ctx context.Context, client ParameterGetter, name string) ([]byte, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "get SSM parameter %s", name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, xerrors.Newf("SSM parameter %s has no value", name)
	}
	v := strings.TrimSpace(*out.Parameter.Value)
	if v == "" {
		return nil, xerrors.Newf("SSM parameter %s is empty", name)
	}
	return []byte(v), nil
}

// Decrypter unwraps an encrypted secret. *cryptoutil.KMSDecrypter
// satisfies it.
type Decrypter interface {
	DecryptBase64(ctx context.Context, ciphertext string) ([]byte, error)
}

// LoadSecretFromKMS decrypts a base64 KMS ciphertext holding the token
// signing secret.
func LoadSecretFromKMS(ctx context.Context, d Decrypter, ciphertext string) ([]byte, error) {
	plain, err := d.DecryptBase64(ctx, ciphertext)
	if err != nil {
		return nil, xerrors.Wrap(err, "decrypt token secret")
	}
	v := strings.TrimSpace(string(plain))
	if v == "" {
		return nil, xerrors.New("decrypted token secret is empty")
	}
	return []byte(v), nil
}
