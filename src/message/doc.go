/*
Package message defines the envelopes relayed across the overlay.

A Direct message is actionable with exactly one valid signature from its
claimed source. A Group message is actionable only once a quorum of the
destination's close group has signed it. Signatures carry the signer's public
key; since a node's name is the hash of its key, the binding between a signer
name and its key is itself verifiable, so a forged key can never vouch for
somebody else's name.
*/
package message
