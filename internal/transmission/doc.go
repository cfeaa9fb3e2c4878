// Package transmission adapts the Transmission RPC protocol to the
// submission contract the ingestion loop consumes.
//
// The wire format is the JSON {method, arguments} envelope with
// X-Transmission-Session-Id renegotiation on 409 and optional basic auth.
// All failures come back tagged with the services taxonomy so the loop can
// decide retry versus quarantine without protocol knowledge.
package transmission
