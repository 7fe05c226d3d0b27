// Package blob stores generated artifacts in object storage and hardens
// uploads against transient TLS faults, the one failure class worth retrying
// on this path.
package blob

import "context"

// Uploader writes one object and returns its locator.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
