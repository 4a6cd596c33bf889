package core

import (
	"log/slog"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
	"github.com/kafkasder-git/starter-function-sub002/internal/person"
	"github.com/kafkasder-git/starter-function-sub002/internal/store"
)

// NewTarget builds a Target around a typed importer.
func NewTarget[T any](info TargetInfo, schema *bulkimport.Schema[T], sink bulkimport.BatchImporter[T], opts bulkimport.Options, logger *slog.Logger) Target {
	if logger == nil {
		logger = slog.Default()
	}
	if len(info.Fields) == 0 {
		for _, f := range schema.Fields {
			info.Fields = append(info.Fields, f.Name)
			if f.Required {
				info.Required = append(info.Required, f.Name)
			}
		}
	}
	imp := bulkimport.New(schema, sink, opts, bulkimport.WithLogger(logger.With("target", info.Key)))
	return Target{Info: info, Job: NewJob(imp)}
}

// PersonTarget is the person import writing to PostgreSQL.
// maxRecords <= 0 uses person.MaxRecords.
func PersonTarget(db store.Beginner, opts bulkimport.Options, maxRecords int, logger *slog.Logger) Target {
	return PersonTargetWithSink(store.NewPersonStore(db), opts, maxRecords, logger)
}

// PersonTargetWithSink is PersonTarget with an arbitrary sink.
func PersonTargetWithSink(sink bulkimport.BatchImporter[person.Person], opts bulkimport.Options, maxRecords int, logger *slog.Logger) Target {
	if maxRecords <= 0 {
		maxRecords = person.MaxRecords
	}
	t := NewTarget(TargetInfo{
		Key:        person.TargetKey,
		Label:      "Persons",
		KeyField:   person.KeyField,
		MaxRecords: maxRecords,
	}, person.Schema(), sink, opts, logger)
	t.MapHeader = person.FieldForHeader
	t.Template = person.WriteTemplate
	t.TemplateName = person.TemplateFileName
	return t
}
