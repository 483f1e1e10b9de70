package txmanager

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

type waitResult struct {
	receipt *types.Receipt
	err     error
}

// waitWithTimeout races the inclusion of tx against a timer. When the timer
// fires first the wait is abandoned and a *TimeoutError is returned; the
// transaction itself stays pending on the network.
func waitWithTimeout(ctx context.Context, tx SubmittedTx, timeout time.Duration, operation string) (*types.Receipt, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan waitResult, 1)
	go func() {
		receipt, err := tx.Wait(waitCtx)
		done <- waitResult{receipt: receipt, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.receipt, res.err
	case <-timer.C:
		return nil, &TimeoutError{Operation: operation, Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
