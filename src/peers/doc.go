// Package peers defines the Contact type, which represents a network peer
// known to the local node, and helpers to read and write bootstrap contact
// lists from JSON files.
package peers
