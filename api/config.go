// Package api provides the HTTP backend for contact submissions, the admin
// contract and read access to stored chat transcripts.
package api

import "github.com/studybuddyai/buddy/pkg/eventstream"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// AdminPassword guards POST /admin and the transcript endpoints.
	// When empty the admin surface answers 503.
	AdminPassword string

	// CORSOrigins is passed to the CORS middleware. Defaults to "*".
	CORSOrigins string

	// Publisher receives a buddy.submission.received event per stored
	// submission. Defaults to a no-op publisher.
	Publisher eventstream.Publisher
}
