// Package bulkimport implements the batched import pipeline shared by every
// import target: schema validation, duplicate elimination, sequential batch
// processing with retry and back-off, live progress and cancellation.
//
// The package knows nothing about files, HTTP or databases. Callers hand it
// untyped [Record] values and a [BatchImporter] that persists one batch at a
// time; it hands back a [Result] describing what was accepted and what failed.
//
// # Pipeline
//
// A run moves through a fixed set of states:
//
//	Idle → Validating → Deduplicating → Processing → Completed | Cancelled | Failed
//
// and returns to Idle once it reaches a terminal state. Only one run may be
// active per [Importer]; a second [Importer.Start] while one is active fails
// with [ErrAlreadyInProgress].
//
//  1. [Schema.Validate] coerces each record field by field. Rows that fail are
//     collected as [RecordError] values with their 1-based row number.
//  2. [Dedupe] drops later records that share a key with an earlier one.
//     Records without a key are always kept.
//  3. [Processor.Process] splits the survivors into batches of
//     [Options.BatchSize] and hands them to the importer one after another,
//     retrying a failing batch according to [RetryPolicy].
//
// # Usage
//
//	imp := bulkimport.New(personSchema, bulkimport.BatchFunc[Person](store.ImportBatch),
//	    bulkimport.DefaultOptions())
//	res, err := imp.Start(ctx, records, "nationalId")
//	switch {
//	case errors.Is(err, bulkimport.ErrCancelled):
//	    // res holds the batches that finished before the cancel
//	case err != nil:
//	    return err
//	}
//
// # Progress
//
// [Progress] carries plain counters; percentage, throughput and ETA are
// derived from them on demand. Observers read [Importer.Progress] or receive
// snapshots from [Importer.Subscribe].
package bulkimport
