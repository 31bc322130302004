// Package retriever downloads short-form videos with yt-dlp.
//
// ParseSource validates submitted URLs and infers the hosting platform from
// the host name. Retriever.Retrieve runs yt-dlp into a tempfiles handle,
// classifies its stderr into failure kinds (access denied, unsupported,
// transient, disk), and retries transient failures with backoff.
package retriever
