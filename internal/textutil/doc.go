// Package textutil provides text processing utilities for name normalization,
// fingerprinting, and similarity.
//
// The primary use cases are:
//   - Normalizing project and export file names into a canonical comparison
//     form (NFC, lowercased, extension and render tags stripped)
//   - Creating token-based fingerprints from extracted metadata terms
//   - Computing cosine similarity between fingerprints and Sørensen–Dice
//     overlap between token sets
//
// Fingerprints use term frequency vectors with optional IDF weighting so rare
// plugin and device names weigh more than ubiquitous ones.
package textutil
