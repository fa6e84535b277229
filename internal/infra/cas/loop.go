// Package cas holds the optimistic retry loop shared by the document stores.
package cas

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"async-quiz-service/internal/domain"
)

// DefaultBudget is the number of attempts made before giving up.
const DefaultBudget = 16

// ErrConflict signals that the compare-and-swap lost a race and should be retried.
var ErrConflict = errors.New("cas conflict")

// Attempt reads, applies and tries to commit once. It returns ErrConflict when
// the stored version moved underneath it.
type Attempt func(ctx context.Context) error

// Loop runs attempt until it commits, fails with a non-conflict error, or the
// budget is exhausted. Retries back off briefly with jitter.
func Loop(ctx context.Context, budget int, attempt Attempt) error {
	if budget <= 0 {
		budget = DefaultBudget
	}
	for i := 0; i < budget; i++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if i+1 < budget {
			time.Sleep(backoff(i))
		}
	}
	return fmt.Errorf("after %d attempts: %w", budget, domain.ErrRetriesExhausted)
}

func backoff(attempt int) time.Duration {
	base := time.Duration(attempt+1) * time.Millisecond
	return base + time.Duration(rand.Int63n(int64(base)+1))
}
