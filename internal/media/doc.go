// Package media prepares source files for the external speech recognition
// service.
//
// Detector classifies inputs by extension. FFmpeg wraps the ffprobe and
// ffmpeg binaries. Resolver runs the per-job compliance state machine:
//
//	Start -> DirectTranscribe
//	Start -> Compress -> Revalidate -> TranscribeCompressed
//	Start -> Compress -> Revalidate -> Fail
//
// and reports the billable duration of whatever artifact was transcribed.
package media
