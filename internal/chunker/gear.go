package chunker

// gearTable is a fixed pseudo-random 256-entry table used by the Gear hash
// that drives content-defined chunk boundary selection (FastCDC-class
// algorithm). The table is generated once, deterministically,
// from a fixed seed — reproducibility across runs and machines is required
// so two clients that see byte-identical file content select byte-identical
// chunk boundaries.
var gearTable [256]uint64

func init() {
	// splitmix64: a small, well-distributed deterministic generator. Any
	// fixed seed works — what matters is that every client compiles the same
	// table, not that it is cryptographically unpredictable (the security
	// boundary is AES-GCM in internal/cryptutil, not chunk boundary selection).
	var seed uint64 = 0x9E3779B97F4A7C15

	for i := range gearTable {
		seed += 0x9E3779B97F4A7C15

		z := seed
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		z ^= z >> 31
		gearTable[i] = z
	}
}
