// Package cryptoutil holds the digest helpers used to fingerprint uploads
// and the KMS decrypter that unwraps an encrypted token secret.
package cryptoutil
