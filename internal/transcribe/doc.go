// Package transcribe talks to the DashScope asynchronous file transcription
// API.
//
// A job is submitted with a public file URL, polled until it reaches a
// terminal status, and the text is pulled out of the first result. The
// result object has appeared in several shapes across API versions; the
// known shapes are tried in a fixed order, see extractors.
package transcribe
