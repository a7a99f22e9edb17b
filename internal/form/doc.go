// Package form defines the answer values exchanged between questionnaire
// pages, the local store and the remote form resource.
//
// This package imports nothing internal. Every other internal package
// builds on it.
//
// Key design constraints:
//   - Values are a sealed union: String, Int, Bool, Null
//   - NO float types - decimal answers are captured as strings
//   - Canonical JSON is the only storage and wire encoding, so a stored
//     field group and a synchronized snapshot are byte-for-byte stable
package form
