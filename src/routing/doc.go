/*
Package routing implements the XOR-metric routing table that organizes known
contacts into proximity buckets around the local node's name.

The table is a flat array of buckets indexed by the length of the common bit
prefix between the local name and the contact's name. Every bucket is capped
at the group size, except that buckets contributing members to the local
node's close group are allowed to grow; accurate knowledge of one's own
neighborhood is the correctness-critical invariant for quorum validity, so
close-group coverage is never sacrificed to bucket capacity.
*/
package routing
