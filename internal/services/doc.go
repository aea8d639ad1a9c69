// Package services implements the [Provider] capability the ingest pipeline pulls audio through.
//
// # yt-dlp
//
// [YTDLPService] drives the yt-dlp executable. Metadata comes from a
// --dump-single-json run; audio comes from a second run with "-o -" whose stdout is
// handed to the caller as the stream. Closing the stream early kills the process.
// Browser identity (user agent, referer, cookie, extra headers) is forwarded from
// [shared.YouTubeConfig], which "jukebox setup youtube" can populate from a copied cURL command.
//
// # Direct
//
// [DirectService] fetches URLs that already point at an .mp3 over plain HTTP.
//
// [Switch] picks between the two by looking at the URL path.
package services
