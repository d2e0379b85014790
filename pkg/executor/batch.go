package executor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Statement is one entry of a Batch.
type Statement struct {
	SQL    string
	Params Params
}

// Batch runs independent statements concurrently, at most limit at a time
// (limit <= 0 means unbounded), and returns their results in input order.
// The first failure cancels the remaining statements. q must be safe for
// concurrent use, so pass a pool rather than a transaction.
func Batch(ctx context.Context, q Querier, stmts []Statement, limit int) ([][]Row, error) {
	results := make([][]Row, len(stmts))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, stmt := range stmts {
		g.Go(func() error {
			rows, err := q.Query(ctx, stmt.SQL, stmt.Params)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
