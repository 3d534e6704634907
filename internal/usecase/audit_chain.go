package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"signet/internal/domain"
)

// genesisHash is the prev hash of each document's first event.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// VerifyDocumentAuditChain recomputes a document's hash chain from the
// persisted events and reports the first broken link. It deliberately
// rebuilds the canonical chain encoding on its own instead of sharing
// the append path's serializer, so a bug there cannot hide tampering.
func VerifyDocumentAuditChain(ctx context.Context, repo AuditEventRepository, documentID string) error {
	if repo == nil {
		return errors.New("audit repository required")
	}
	if documentID == "" {
		return errors.New("document id is required")
	}
	events, err := repo.ListByDocument(ctx, documentID)
	if err != nil {
		return err
	}

	prevHash := genesisHash
	for i, event := range events {
		if err := checkChainLink(event, documentID, int64(i)+1, prevHash); err != nil {
			return err
		}
		prevHash = event.EventHash
	}
	return nil
}

// checkChainLink validates one event against its expected position and
// predecessor, then recomputes both of its hashes.
func checkChainLink(event domain.AuditEvent, documentID string, seq int64, prevHash string) error {
	switch {
	case event.DocumentID != documentID:
		return fmt.Errorf("audit chain document mismatch at seq %d", event.Seq)
	case event.Seq != seq:
		return fmt.Errorf("audit chain seq mismatch: expected %d got %d", seq, event.Seq)
	case event.PrevEventHash != prevHash:
		return fmt.Errorf("audit chain prev hash mismatch at seq %d", event.Seq)
	case event.CreatedAt.IsZero():
		return fmt.Errorf("audit chain missing created_at at seq %d", event.Seq)
	}

	detail, err := detailBytes(event.Detail)
	if err != nil {
		return fmt.Errorf("audit chain detail decode failed at seq %d: %w", event.Seq, err)
	}
	if sha256Hex(detail) != event.PayloadHash {
		return fmt.Errorf("audit chain payload hash mismatch at seq %d", event.Seq)
	}

	eventHash, err := computeChainHash(event)
	if err != nil {
		return fmt.Errorf("audit chain hash compute failed at seq %d: %w", event.Seq, err)
	}
	if eventHash != event.EventHash {
		return fmt.Errorf("audit chain hash mismatch at seq %d", event.Seq)
	}
	return nil
}

// detailBytes expects the canonical JSON persisted at append time;
// anything else means the row was rewritten outside the append path.
func detailBytes(detail any) ([]byte, error) {
	switch v := detail.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("detail must carry canonical JSON bytes")
	}
}

// chainField is one key of the hashed chain record. Fields are listed
// in canonical (sorted) key order; raw fields are emitted unquoted.
type chainField struct {
	name  string
	value string
	raw   bool
}

func computeChainHash(event domain.AuditEvent) (string, error) {
	if event.DocumentID == "" || event.Action == "" || event.Actor == "" {
		return "", errors.New("audit event missing document_id, action or actor")
	}
	if event.PayloadHash == "" || event.PrevEventHash == "" {
		return "", errors.New("audit event missing payload_hash or prev_event_hash")
	}

	fields := []chainField{
		{name: "action", value: string(event.Action)},
		{name: "actor", value: event.Actor},
		{name: "created_at", value: event.CreatedAt.UTC().Format(time.RFC3339Nano)},
		{name: "document_id", value: event.DocumentID},
		{name: "payload_hash", value: event.PayloadHash},
		{name: "prev_event_hash", value: event.PrevEventHash},
		{name: "seq", value: strconv.FormatInt(event.Seq, 10), raw: true},
		{name: "v", value: domain.AuditChainVersion},
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteJSONString(f.name))
		b.WriteByte(':')
		if f.raw {
			b.WriteString(f.value)
		} else {
			b.WriteString(quoteJSONString(f.value))
		}
	}
	b.WriteByte('}')
	return sha256Hex([]byte(b.String())), nil
}

var shortEscape = map[rune]string{
	'\b': `\b`,
	'\f': `\f`,
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
}

// quoteJSONString escapes value the same way the canonical serializer
// in infra/crypto does, so both sides hash identical bytes.
func quoteJSONString(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('"')
	for _, r := range value {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r >= 0x20:
			b.WriteRune(r)
		case shortEscape[r] != "":
			b.WriteString(shortEscape[r])
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
