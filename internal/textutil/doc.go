// Package textutil provides text processing utilities for caption length
// enforcement and filesystem-safe naming.
//
// Caption truncation is Unicode-aware: text is NFC-normalized before cutting
// so a limit never lands inside a combining sequence, and the cut prefers the
// last word boundary over a mid-word chop.
package textutil
