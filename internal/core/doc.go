// Package core is the service layer over bulkimport.
//
// It is independent of any transport, so the HTTP server and the CLI share
// it unchanged.
//
// # Targets
//
// A [Target] binds a record type to its importer, header mapping and sample
// template. Targets are added to a [Registry] at start-up:
//
//	svc := core.NewService(core.NewRegistry(), store.NewRunStore(pool), cfg, logger)
//	svc.Register(core.PersonTarget(pool, bulkimport.DefaultOptions(), 0, logger))
//
// # Runs
//
//  1. [Service.ImportFile] reads the upload with the target's header mapping
//     and record cap, then calls [Service.StartImport]
//  2. StartImport rejects a second run of the same target, waits for a slot
//     in the [RunLimiter] and starts the importer in the background
//  3. Clients follow [Service.Subscribe] and call [Service.Result], which
//     blocks until the run ends
//  4. Finished runs are written to history through a [RunRecorder]
//
// # Errors
//
// [MapError] turns any error returned here into a [UserMessage] with a
// support code. See error_messages.go for the catalogue.
package core
