package logger

import (
	"encoding/hex"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Protocol & Connection
	// ========================================================================
	KeyOpcode       = "opcode"        // Wire opcode of the current frame
	KeyFrameLen     = "frame_len"     // Total frame length including header
	KeyClientIP     = "client_ip"     // Remote address of the connection
	KeyConnectionID = "connection_id" // Per-accept sequence number

	// ========================================================================
	// Session
	// ========================================================================
	KeySessionID = "session_id" // Opaque session identifier
	KeyTurn      = "turn"       // Current turn owner: player, opponent
	KeyPhase     = "phase"      // DRAW, MAIN, END

	// ========================================================================
	// Match Engine
	// ========================================================================
	KeyActor      = "actor"       // player or opponent
	KeyCardID     = "card_id"     // Card catalog identifier
	KeyCardKind   = "card_kind"   // ATK, HEAL, SHIELD, BUFF, POISON
	KeyHandIdx    = "hand_idx"    // Slot index played
	KeyManaBefore = "mana_before" // Mana before a play
	KeyManaAfter  = "mana_after"  // Mana after a play
	KeyHP         = "hp"
	KeyShield     = "shield"
	KeyWinner     = "winner"

	// ========================================================================
	// Errors
	// ========================================================================
	KeyError     = "error"
	KeyErrorCode = "error_code"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"

	// KeyPayload tags a hex-encoded dump of a raw frame payload, used only
	// at debug level since frames can carry up to 2048 bytes.
	KeyPayload = "payload"
)

// Err returns a slog.Attr for an error, or a zero Attr if err is nil so it
// can be passed straight into a variadic args list without a nil check.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Payload hex-encodes a raw frame payload for debug logging.
func Payload(b []byte) slog.Attr {
	return slog.String(KeyPayload, hex.EncodeToString(b))
}
