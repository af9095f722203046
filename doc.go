// Package fsh is a compiler front-end for FHIR Shorthand (FSH).
//
// It turns a batch of FSH source files into a typed in-memory document
// model: one Document per file, holding Profiles, Extensions, Logical
// models, Resources, Instances, ValueSets, CodeSystems, Invariants,
// Mappings and RuleSets, each with an ordered list of typed rules. A
// downstream exporter turns that model into FHIR JSON.
//
// # Quick Start
//
//	import (
//	    "github.com/gofhir/fsh/pkg/importer"
//	    "github.com/gofhir/fsh/pkg/legality"
//	)
//
//	imp := importer.New(importer.WithMaxInsertDepth(16))
//	result, err := imp.Import(ctx, []importer.RawFSH{
//	    {Path: "profiles.fsh", Content: src},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, doc := range result.Documents {
//	    legality.CheckDocument(doc, result.Issues)
//	}
//	for _, i := range result.Issues.Issues {
//	    fmt.Println(i)
//	}
//
// # Pipeline
//
//   - Parse: every file is lexed and parsed in parallel into a typed
//     parse tree (package parser).
//   - Preprocess: aliases and parameterized RuleSets are collected across
//     the whole batch, so forward references between files resolve.
//   - Visit: each parse tree becomes a Document. Aliases are substituted,
//     strings decoded, duplicates rejected, and parameterized inserts
//     expanded by textual substitution and a nested parse.
//   - Splice: insert rules are replaced by the rules of the RuleSets they
//     name, so no insert rule survives the import.
//
// # Diagnostics
//
// Bad input never stops an import. Problems are reported as issues to an
// issue.Sink and the offending construct is skipped or defaulted. Only API
// misuse, such as running the same Importer twice, returns a Go error.
package fsh
