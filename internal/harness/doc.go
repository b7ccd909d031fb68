// Package harness runs cache conformance scenarios.
//
// A scenario is a YAML file listing store operations against one cache and
// the outcome each should have. The harness executes the steps in order
// against any store.ResultStore, records a trace of what happened, and
// reports every step whose outcome differs from its expectation.
//
// # Scenario Format
//
//	name: person_org_merge
//	description: "Merging two classifiers' output for the same text"
//	steps:
//	  - op: exists
//	    text: "Alice works at Acme"
//	    expect: { exists: false }
//	  - op: put
//	    text: "Alice works at Acme"
//	    record:
//	      entries:
//	        - { category: PERSON, value: Alice }
//	  - op: merge
//	    text: "Alice works at Acme"
//	    record:
//	      entries:
//	        - { category: ORG, value: Acme }
//	  - op: get
//	    text: "Alice works at Acme"
//	    expect: { categories: [PERSON, ORG] }
//
// Each step addresses a row by text (hashed with fingerprint.Compute) or by
// a literal fingerprint, which is passed to the store unvalidated so that
// invalid keys can be exercised.
//
// # Operations
//
//   - exists: Exists; expect.exists checks the answer
//   - get: Get; expect.entries and expect.categories check the record
//   - put: Put with InsertOnly
//   - merge: Put with UpsertMerge
//   - bootstrap: Bootstrap
//
// expect.error names the error kind a step must fail with, using the
// store.Outcome names (not_found, invalid_fingerprint, backend_unavailable,
// serialization). A step without expect.error must succeed.
//
// # Isolation
//
// RunEmbedded executes a scenario against a fresh SQLite file so that
// traces are identical across runs and can be compared with golden files.
package harness
