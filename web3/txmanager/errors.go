package txmanager

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NonceUsedMessage is the text that identifies a transaction whose nonce was
// already consumed on chain.
const NonceUsedMessage = "nonce has already been used"

var (
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("timed out")
	// ErrEstimateGas wraps gas estimation failures.
	ErrEstimateGas = errors.New("error estimating gas")
)

// ErrorKind classifies the node errors the Executor reacts to.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindReplaced means another transaction with the same nonce was mined.
	KindReplaced
	// KindNonceExpired means the nonce was consumed by a transaction that
	// could not be identified.
	KindNonceExpired
	// KindUnderpriced means the node refused a submission because its price
	// does not beat the one already pooled for the nonce.
	KindUnderpriced
)

func (k ErrorKind) String() string {
	switch k {
	case KindReplaced:
		return "replaced"
	case KindNonceExpired:
		return "nonce expired"
	case KindUnderpriced:
		return "underpriced"
	default:
		return "unknown"
	}
}

// ProviderError is a classified node error. The node adapter builds it at the
// boundary so the Executor never inspects raw node errors.
type ProviderError struct {
	Kind            ErrorKind
	ReplacementHash *common.Hash
	Err             error
}

// NewReplacedError reports that hash replaced the transaction being waited.
func NewReplacedError(hash common.Hash) *ProviderError {
	return &ProviderError{Kind: KindReplaced, ReplacementHash: &hash}
}

// NewNonceExpiredError reports a consumed nonce, keeping the node cause.
func NewNonceExpiredError(cause error) *ProviderError {
	return &ProviderError{Kind: KindNonceExpired, Err: cause}
}

// NewUnderpricedError reports a submission priced below the pooled one.
func NewUnderpricedError(cause error) *ProviderError {
	return &ProviderError{Kind: KindUnderpriced, Err: cause}
}

func (e *ProviderError) Error() string {
	switch e.Kind {
	case KindReplaced:
		if e.ReplacementHash != nil {
			return fmt.Sprintf("transaction replaced by %s", e.ReplacementHash.Hex())
		}
		return "transaction replaced"
	case KindNonceExpired:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", NonceUsedMessage, e.Err)
		}
		return NonceUsedMessage
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "provider error"
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ReplacementHash returns the hash of the transaction that replaced the one
// being waited, when err carries it.
func ReplacementHash(err error) (common.Hash, bool) {
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.ReplacementHash == nil {
		return common.Hash{}, false
	}
	return *perr.ReplacementHash, true
}

// KindOf returns the kind of the ProviderError carried by err.
func KindOf(err error) ErrorKind {
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return KindUnknown
	}
	return perr.Kind
}

// IsNonceAlreadyUsed reports whether err says the nonce was already consumed.
func IsNonceAlreadyUsed(err error) bool {
	return err != nil && strings.Contains(err.Error(), NonceUsedMessage)
}

// TimeoutError is returned when an operation did not complete in time.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %dms", e.Operation, e.Timeout.Milliseconds())
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// FailedTxError is returned when a transaction was mined but reverted.
type FailedTxError struct {
	Operation string
	Hash      common.Hash
}

func (e *FailedTxError) Error() string {
	return fmt.Sprintf("%s transaction failed: %s", e.Operation, e.Hash.Hex())
}

// IsNonceTooLow matches the node rejection of a transaction reusing a mined
// nonce.
func IsNonceTooLow(err error) bool {
	return containsErr(err, "nonce too low") ||
		containsErr(err, "nonce is too low") ||
		containsErr(err, "invalid nonce") ||
		containsErr(err, NonceUsedMessage)
}

// IsAlreadyKnown matches the node answer for a transaction already pooled.
func IsAlreadyKnown(err error) bool {
	return containsErr(err, "already known") ||
		containsErr(err, "known transaction")
}

// IsUnderpriced matches the node rejection of a replacement that does not
// raise the price enough.
func IsUnderpriced(err error) bool {
	return containsErr(err, "replacement transaction underpriced") ||
		containsErr(err, "transaction underpriced")
}

func containsErr(err error, sub string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), strings.ToLower(sub))
}
