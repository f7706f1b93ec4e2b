// Package receipt defines the zkputer receipt data model returned by the
// verification server, together with the hash conventions the server uses
// and client-side checks built on them: offchain proof verification and
// receipt integrity validation. Hashes are sha256 over compact JSON with
// lexicographically ordered keys, hex encoded with an 0x prefix, which is
// exactly what encoding/json produces for Go maps.
package receipt
