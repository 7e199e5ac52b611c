/*
Package node implements the relay engine.

A Node runs a single event loop that consumes transport events, API requests,
and periodic sweep ticks, and applies them one at a time to a Core. The Core
owns the routing table, the message filter, and the group accumulator;
handlers mutate that state and return the envelopes to transmit, so every
state transition is serialized and deterministic. A failing event is logged
and dropped; the loop itself never halts.
*/
package node
