package auditchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// hashVersion tags the canonical serialization so the scheme can evolve
// without ambiguity about which layout produced a stored hash.
const hashVersion = "v1"

// canonicalReceiptPayload serializes the hashed fields with explicit length
// prefixes. Length prefixes rule out splice ambiguity between adjacent fields
// ("a|bc" vs "ab|c") that plain separator joins suffer from.
func canonicalReceiptPayload(eventType EventType, actorID, resourceID, detailsHash, previousHash string) string {
	var b strings.Builder
	b.WriteString(hashVersion)
	for _, field := range []string{string(eventType), actorID, resourceID, detailsHash, previousHash} {
		fmt.Fprintf(&b, "|%d:%s", len(field), field)
	}
	return b.String()
}

// ComputeReceiptHash derives the chain hash for a receipt's identifying
// fields. Verification recomputes this and compares against the stored value.
func ComputeReceiptHash(eventType EventType, actorID, resourceID, detailsHash, previousHash string) string {
	return sha256Hex(canonicalReceiptPayload(eventType, actorID, resourceID, detailsHash, previousHash))
}

// DetailsHash commits to an event's payload fields. Keys are sorted so the
// same details always produce the same hash regardless of map iteration.
func DetailsHash(details map[string]string) string {
	if len(details) == 0 {
		return sha256Hex(hashVersion + "|empty")
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(hashVersion)
	for _, k := range keys {
		v := details[k]
		fmt.Fprintf(&b, "|%d:%s=%d:%s", len(k), k, len(v), v)
	}
	return sha256Hex(b.String())
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
