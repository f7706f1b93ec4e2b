package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// HashString hashes a string the way the server does: sha256, hex encoded
// with an 0x prefix.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return "0x" + hex.EncodeToString(sum[:])
}

// HashJSON hashes the compact JSON serialization of v. Go marshals map keys
// in lexicographic order, matching the server's canonical form, so passing a
// map[string]any reproduces the server's hashes bit for bit.
func HashJSON(v any) string {
	serialized, err := json.Marshal(v)
	if err != nil {
		serialized = []byte("{}")
	}
	return HashString(string(serialized))
}

// ComputeEvidenceRoot recomputes the evidence root over the provenance items:
// artifact hashes sorted and hashed as a leaf list.
func (p Provenance) ComputeEvidenceRoot() string {
	leaves := make([]string, 0, len(p.EvidenceItems))
	for _, item := range p.EvidenceItems {
		leaves = append(leaves, item.ArtifactHash)
	}
	sort.Strings(leaves)
	return HashJSON(map[string]any{"leaves": leaves})
}

// VerifyOffchain checks a PROVED receipt without contacting the server: the
// proof must come from a real backend and the recomputed public-inputs hash
// must match the one embedded in the proof metadata.
func VerifyOffchain(r *Receipt) bool {
	if r == nil || r.Status != StatusProved {
		return false
	}
	if r.Proof.Backend == BackendNone {
		return false
	}

	expected := HashJSON(map[string]any{
		"claim_hash":    r.Claim.ClaimHash,
		"evidence_root": r.Provenance.EvidenceRoot,
		"venue":         r.Subject.Venue,
		"claim_type":    r.Claim.Type,
	})
	return expected == r.Proof.PublicInputsHash
}

// CheckIntegrity recomputes the schema hash, receipt hash and signature over
// the receipt's own fields and compares them with the embedded integrity
// block. It detects tampering after issuance, not a dishonest issuer.
func CheckIntegrity(r *Receipt) bool {
	if r == nil {
		return false
	}

	schemaHash := HashJSON(map[string]any{
		"schema":  "zkreceipt.schema.json",
		"version": r.Version,
	})
	receiptHash := HashJSON(map[string]any{
		"status":        r.Status,
		"claim_hash":    r.Claim.ClaimHash,
		"evidence_root": r.Provenance.EvidenceRoot,
		"proof_hash":    r.Proof.PublicInputsHash,
	})
	signature := HashJSON(map[string]any{
		"signer":       r.Integrity.Signer,
		"receipt_hash": receiptHash,
	})

	return schemaHash == r.Integrity.SchemaHash &&
		receiptHash == r.Integrity.ReceiptHash &&
		signature == r.Integrity.Signature
}
