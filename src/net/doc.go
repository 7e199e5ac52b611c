/*
Package net implements the transports that carry overlay envelopes between
nodes.

A Transport is a fire-and-forget frame pipe: Send transmits one payload to a
target address, and the Consumer channel surfaces received payloads along
with connection lifecycle events. The TCP implementation frames payloads with
a 4-byte length prefix and pools outbound connections; the in-memory
implementation wires transports together directly for tests.
*/
package net
