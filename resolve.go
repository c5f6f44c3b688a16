package mangashark

// Resolve decides which of two progress records for the same unit key
// takes effect. A strictly newer UpdatedAt wins; on an exact-timestamp
// tie the existing record is kept, so the first writer wins. The
// comparison gives a total order across the foreground session, bulk
// mark-read operations and migration imports without any coordination
// beyond reasonably synchronized clocks, which holds since all writers
// live in one process.
func Resolve(existing, incoming *ProgressRecord) *ProgressRecord {
	if existing == nil {
		return incoming
	}
	if incoming == nil {
		return existing
	}
	if incoming.UpdatedAt.After(existing.UpdatedAt) {
		return incoming
	}
	return existing
}

// mergeProgress folds encoded record operands, ordered old to new, into
// the winning encoding. Used by the pebble merge operator so concurrent
// writers converge even when they race past the engine's
// read-compare-write path.
func mergeProgress(inputs [][]byte) []byte {
	var win []byte
	var winRec *ProgressRecord
	for _, raw := range inputs {
		rec, err := parseProgress(raw)
		if err != nil {
			continue
		}
		if winRec == nil || Resolve(winRec, rec) == rec {
			win = raw
			winRec = rec
		}
	}
	return win
}
