// Package match provides name normalization, Levenshtein distance and
// ranked "did you mean" suggestions for attribute, association and type
// names referenced by descriptors.
//
// Key functions:
//   - NormalizeIdent: folds camelCase, snake_case and kebab-case to one form
//   - Levenshtein: computes edit distance between strings
//   - Suggest: ranks known names by similarity to an unknown one
package match
