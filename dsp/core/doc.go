// Package core holds the small shared vocabulary of the engine: processing
// configuration options, the error categories and generic sample helpers.
package core
