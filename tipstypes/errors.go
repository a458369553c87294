package tipstypes

import "errors"

// Validation errors, returned by Validate, ValidateRawBundleArgs and the
// transaction and UserOperation decode paths.
var (
	ErrTooManyTransactions    = errors.New("too many transactions in bundle")
	ErrGasLimitExceeded       = errors.New("bundle gas limit exceeded")
	ErrUnsupportedField       = errors.New("bundle uses an unsupported field")
	ErrWrongChainID           = errors.New("transaction has wrong chain id")
	ErrDecoding               = errors.New("failed to decode transaction")
	ErrEntryPointNotSupported = errors.New("entry point not in whitelist")
)

// Protocol errors. These are informational: they never fail an admission,
// they just describe what the store/pipeline decided to do with an event.
var (
	ErrUnknownUUID   = errors.New("unknown bundle uuid")
	ErrDuplicateHash = errors.New("duplicate bundle hash")
)

// MaxBundleGas is the protocol-wide gas ceiling for a bundle (spec.md I4).
const MaxBundleGas = 25_000_000

// MaxBundleTxs is the maximum number of transactions a bundle may carry (spec.md I4).
const MaxBundleTxs = 3
