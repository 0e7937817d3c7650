// Package projector turns a record and the records reachable through its
// associations into a plain, ordered, JSON-serializable tree.
//
// Projection of one record runs in fixed stages:
//  1. Cycle check against the visited path; a record already on the path
//     yields no result.
//  2. Plain attributes are copied verbatim.
//  3. Key attributes ("authorUuid") are resolved concurrently from the
//     record, a resident association, or a lazy fetch.
//  4. Associations that are still missing are prefetched concurrently when
//     the missing-association policy says "load".
//  5. Associations are projected concurrently, each nested record planned
//     with the same mode as its parent.
//
// Every stage waits for all of its goroutines before the next begins, and
// a failed fetch fails the whole projection after in-flight work settles.
// Missing data is never an error: it is omitted and optionally reported to
// a diagnostic.Sink.
package projector
