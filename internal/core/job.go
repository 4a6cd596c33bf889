package core

import (
	"context"
	"errors"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
)

// importerJob adapts a typed Importer to Job.
type importerJob[T any] struct {
	*bulkimport.Importer[T]
}

// NewJob wraps imp so the service can drive it without knowing T.
func NewJob[T any](imp *bulkimport.Importer[T]) Job {
	return importerJob[T]{imp}
}

func (j importerJob[T]) StartAsync(ctx context.Context, raw []bulkimport.Record, keyField string) (<-chan RunOutcome, error) {
	typed, err := j.Importer.StartAsync(ctx, raw, keyField)
	if err != nil {
		return nil, err
	}

	out := make(chan RunOutcome, 1)
	go func() {
		o := <-typed
		out <- RunOutcome{
			State:     outcomeState(o.Err),
			Summary:   o.Result.Summary,
			Succeeded: len(o.Result.Successful),
			Err:       o.Err,
		}
		close(out)
	}()
	return out, nil
}

func outcomeState(err error) bulkimport.State {
	switch {
	case err == nil:
		return bulkimport.StateCompleted
	case errors.Is(err, bulkimport.ErrCancelled):
		return bulkimport.StateCancelled
	default:
		return bulkimport.StateFailed
	}
}
