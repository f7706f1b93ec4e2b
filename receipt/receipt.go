package receipt

import "encoding/json"

// Venue identifies a trading venue the server can collect evidence from.
type Venue string

// Supported venues.
const (
	VenueHyperliquid Venue = "hyperliquid"
	VenueBase        Venue = "base"
	VenueSolana      Venue = "solana"
	VenuePolymarket  Venue = "polymarket"
)

// ClaimType identifies what a receipt attests.
type ClaimType string

// Supported claim types.
const (
	ClaimOrderPlaced   ClaimType = "ORDER_PLACED"
	ClaimTradeExecuted ClaimType = "TRADE_EXECUTED"
)

// Status is the lifecycle state of a receipt.
type Status string

// Receipt statuses.
const (
	StatusPending     Status = "PENDING"
	StatusProved      Status = "PROVED"
	StatusNonProvable Status = "NON_PROVABLE"
	StatusInvalidated Status = "INVALIDATED"
)

// NonProvableReason explains why a claim could not be proved.
type NonProvableReason string

// Non-provable reason codes.
const (
	ReasonEvidenceMissing       NonProvableReason = "EVIDENCE_MISSING"
	ReasonEvidenceConflict      NonProvableReason = "EVIDENCE_CONFLICT"
	ReasonSourceUnavailable     NonProvableReason = "SOURCE_UNAVAILABLE"
	ReasonFinalityTimeout       NonProvableReason = "FINALITY_TIMEOUT"
	ReasonPolicyViolation       NonProvableReason = "POLICY_VIOLATION"
	ReasonSchemaInvalid         NonProvableReason = "SCHEMA_INVALID"
	ReasonUnsupportedVenueClaim NonProvableReason = "UNSUPPORTED_VENUE_CLAIM"
	ReasonProofFailure          NonProvableReason = "PROOF_FAILURE"
)

// VerificationMode describes how a proof is meant to be checked.
type VerificationMode string

// Verification modes.
const (
	ModeOffchain            VerificationMode = "OFFCHAIN"
	ModeOnchainAnchored     VerificationMode = "ONCHAIN_ANCHORED"
	ModeOffchainAndAnchored VerificationMode = "OFFCHAIN_AND_ANCHORED"
)

// ProofBackend identifies the proving system behind a receipt.
type ProofBackend string

// Proof backends.
const (
	BackendSP1  ProofBackend = "SP1"
	BackendPico ProofBackend = "PICO"
	BackendNone ProofBackend = "NONE"
)

// ProofRequest is the claim submission payload accepted by the server's
// verify-claim tool.
type ProofRequest struct {
	Venue        Venue           `json:"venue"`
	ClaimType    ClaimType       `json:"claim_type"`
	AccountRef   string          `json:"account_ref"`
	OrderRef     string          `json:"order_ref"`
	ExecutionRef *string         `json:"execution_ref,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// TruthClaim is the statement a receipt attests.
type TruthClaim struct {
	Type      ClaimType `json:"type"`
	Statement string    `json:"statement"`
	ClaimHash string    `json:"claim_hash"`
}

// Subject identifies what the claim is about.
type Subject struct {
	Venue        Venue   `json:"venue"`
	AccountRef   string  `json:"account_ref"`
	OrderRef     string  `json:"order_ref"`
	ExecutionRef *string `json:"execution_ref,omitempty"`
}

// PolicyContext records which policy configuration produced the receipt.
type PolicyContext struct {
	PolicyID                string `json:"policy_id"`
	FinalityRuleID          string `json:"finality_rule_id"`
	SourcePrecedenceVersion string `json:"source_precedence_version"`
}

// EvidenceItem is one artifact the server observed while collecting
// evidence.
type EvidenceItem struct {
	SourceID     string   `json:"source_id"`
	SourceKind   string   `json:"source_kind"`
	ArtifactRef  string   `json:"artifact_ref"`
	ArtifactHash string   `json:"artifact_hash"`
	ObservedAt   string   `json:"observed_at"`
	Tags         []string `json:"tags,omitempty"`
}

// Provenance binds a receipt to the evidence behind it.
type Provenance struct {
	EvidenceRoot  string         `json:"evidence_root"`
	EvidenceItems []EvidenceItem `json:"evidence_items"`
}

// Timing records the observable timeline of a claim.
type Timing struct {
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
	ExecutionObservedAt *string `json:"execution_observed_at,omitempty"`
	FinalityObservedAt  *string `json:"finality_observed_at,omitempty"`
}

// ProofMetadata describes the proof artifact attached to a receipt.
type ProofMetadata struct {
	Backend          ProofBackend     `json:"backend"`
	CircuitID        string           `json:"circuit_id"`
	CircuitVersion   string           `json:"circuit_version"`
	VerifierKeyID    string           `json:"verifier_key_id"`
	VerifierKeyHash  string           `json:"verifier_key_hash"`
	PublicInputsHash string           `json:"public_inputs_hash"`
	VerificationMode VerificationMode `json:"verification_mode"`
	ProofArtifactRef *string          `json:"proof_artifact_ref,omitempty"`
	AnchoredRootRef  *string          `json:"anchored_root_ref,omitempty"`
}

// NonProvable explains a NON_PROVABLE receipt.
type NonProvable struct {
	ReasonCode NonProvableReason `json:"reason_code"`
	Details    string            `json:"details"`
}

// Integrity carries the self-describing hashes and signature of a receipt.
type Integrity struct {
	SchemaHash  string `json:"schema_hash"`
	ReceiptHash string `json:"receipt_hash"`
	Signer      string `json:"signer"`
	Signature   string `json:"signature"`
}

// Receipt is the complete verification record produced by the server.
type Receipt struct {
	ReceiptID   string        `json:"receipt_id"`
	Version     string        `json:"version"`
	Status      Status        `json:"status"`
	Claim       TruthClaim    `json:"claim"`
	Subject     Subject       `json:"subject"`
	Policy      PolicyContext `json:"policy"`
	Provenance  Provenance    `json:"provenance"`
	Timing      Timing        `json:"timing"`
	Proof       ProofMetadata `json:"proof"`
	Integrity   Integrity     `json:"integrity"`
	NonProvable *NonProvable  `json:"non_provable,omitempty"`
}
