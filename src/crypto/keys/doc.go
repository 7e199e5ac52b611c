// Package keys wraps the generation, serialization, and use of ECDSA keys on
// the secp256k1 curve. Every overnet node is identified by such a key: its
// network name is derived from the public key, and every message it emits is
// signed with the private key.
package keys
