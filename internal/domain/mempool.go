package domain

// MempoolEntry is a classified transaction observed on the log stream.
// Entries are immutable once created; the retention manager is the only
// component that removes them.
type MempoolEntry struct {
	Signature      string   // Solana transaction signature
	Logs           []string // raw log lines as delivered by the stream
	Slot           int64    // Solana slot number
	ObservedAt     int64    // Unix timestamp in milliseconds
	DEXInteraction bool     // true if any known DEX program appears in the logs
	ProgramCalls   int      // count of DEX program invoke lines
	Wallet         string   // originating wallet, empty when the stream does not carry it
}

// LargeTrade reports whether the entry looks like a large trade under the
// program-call heuristic: more than three distinct DEX program invocations
// in a single transaction.
func (e *MempoolEntry) LargeTrade() bool {
	return e.ProgramCalls > 3
}
