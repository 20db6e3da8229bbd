// Package deploykey manages the SSH key Argo CD uses to read the GitOps
// repository.
//
// The key moves through three states:
//
//	NoKeyMaterial -> KeyMaterialStored -> DeployKeyRegistered
//
// The first transition happens only when the public-key ConfigMap is absent.
// It generates a 4096-bit RSA pair, writes the private half to the Argo CD
// repository Secret, the public half to the ConfigMap, then wipes the pair
// from memory. Once the ConfigMap exists the pair is never regenerated.
//
// The second transition registers the public key as a read-only deploy key
// with the Git provider, unless a key with the same fingerprint is already
// there. Registration is best effort: unknown providers are skipped and
// authorization or not-found answers are reported as warnings.
package deploykey
