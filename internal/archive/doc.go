// Package archive moves processed descriptor files out of the watched
// directory. Moves are crash-safe: rename on the same volume, otherwise
// copy-verify-promote-delete, so no point of failure leaves the file half
// anywhere.
package archive
