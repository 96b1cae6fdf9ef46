// Package auditchain implements the append-only, hash-linked receipt ledger.
// Every governance decision lands here before it is returned to a caller; the
// chain is the one component with a persistent, externally verifiable order.
package auditchain

import "time"

// EventType classifies a chained receipt.
type EventType string

const (
	EventPRBAllocated      EventType = "PRB_ALLOCATED"
	EventPRBLocked         EventType = "PRB_LOCKED"
	EventPRBConsumed       EventType = "PRB_CONSUMED"
	EventPairwiseAllocated EventType = "PAIRWISE_ALLOCATED"
	EventPairwiseConsumed  EventType = "PAIRWISE_CONSUMED"
	EventCohortBlock       EventType = "COHORT_BLOCK"
	EventLinkageBlock      EventType = "LINKAGE_BLOCK"
	EventPolicyEvaluated   EventType = "POLICY_EVALUATED"
	EventConsentGranted    EventType = "CONSENT_GRANTED"
	EventConsentRevoked    EventType = "CONSENT_REVOKED"
)

// ActorType identifies the kind of principal a receipt attributes an action to.
type ActorType string

const (
	ActorSystem      ActorType = "SYSTEM"
	ActorRequester   ActorType = "REQUESTER"
	ActorDataSubject ActorType = "DATA_SUBJECT"
)

// GenesisHash is the previous-hash sentinel for the first receipt in a chain.
const GenesisHash = "GENESIS"

// Receipt is one node in the hash chain. Receipts are immutable: the store
// offers no update or delete.
type Receipt struct {
	// ID is a ULID; lexicographic order equals append order.
	ID           string
	EventType    EventType
	ActorID      string
	ActorType    ActorType
	ResourceID   string
	ResourceType string
	// DetailsHash commits to the event payload without storing it.
	DetailsHash string
	// PreviousHash is the ReceiptHash of the receipt appended immediately
	// before this one, or GenesisHash for the first receipt.
	PreviousHash string
	ReceiptHash  string
	CreatedAt    time.Time
}

// Filter narrows receipt listings for the audit reader surface.
type Filter struct {
	ActorID    string
	ResourceID string
	EventType  EventType
	From, To   time.Time
	Limit      int
}
