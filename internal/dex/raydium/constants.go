// internal/dex/raydium/constants.go
package raydium

// Instruction indexes of the pool CPIs issued at migration.
const (
	CreatePoolInstruction   uint8 = 1
	CreateFeeKeyInstruction uint8 = 1
)

// FullFeeShareBps routes every pool fee to the fee key holder.
const FullFeeShareBps uint64 = 10_000
