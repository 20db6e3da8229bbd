// Package keygen provides utilities for generating and fingerprinting
// SSH key pairs.
//
// This package generates RSA key pairs suitable for repository deploy keys,
// outputting the private key in PEM format and the public key in OpenSSH
// authorized_keys format. Fingerprints use the OpenSSH SHA256 form so they
// compare equal to what Git hosting providers display.
package keygen
