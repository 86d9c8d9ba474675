// Package core provides the ingestion pipeline for customer CSV imports.
//
// This package has no transport dependencies. The web API, the CLI and the
// tests all drive it through an [Importer].
//
// # Pipeline
//
// One upload moves through these phases:
//
//  1. [Decode] tries the candidate encodings and strips any byte order mark.
//  2. [DetectDialect] scores each candidate delimiter over a sample and
//     picks the line ending and quote character.
//  3. [ParseStructure] splits header and rows, reporting short, long and
//     malformed lines as [StructuralIssue] values.
//  4. [MapHeaders] binds columns to canonical fields by exact, normalized
//     and fuzzy alias matches. A mandatory field with no column stops the
//     batch with a [SchemaError] before anything is written.
//  5. The [Validator] coerces every cell to its field type and yields a
//     [ValidationOutcome] per row.
//  6. The [Resolver] looks for an existing record by identifier, then by
//     handle, then by given and family name.
//  7. The [Committer] creates new records and tallies the [ImportReport].
//
// [Importer.Prepare] runs steps 1 to 4 once so a preview and the import that
// follows it share a parse.
//
// # Schemas
//
// A [Schema] is built once with [NewSchema] or [ParseSchemaYAML] and never
// changes afterwards. The built-in customer schema lives in the schemas
// subpackage and registers itself with [Register] at init time:
//
//	schema, _ := core.GetSchema("customer")
//	im := core.NewImporter(schema, store, core.Options{})
//	report, err := im.Import(ctx, raw, core.ImportOptions{})
//
// # Error Handling
//
// Only a [DecodeError] or a [SchemaError] aborts a batch. Row problems are
// recorded in the report. [MapError] turns any error into a [UserMessage]
// with a support code:
//
//   - ENC001: encoding
//   - MAP001-MAP003: mapping and schema
//   - VAL001-VAL007: field validation
//   - DUP001-DUP002: duplicates
//   - DB001-DB005: record store
//   - FILE001-FILE004: upload
//   - IMP001-IMP004: import lifecycle
//   - RATE001: rate limiting
package core
