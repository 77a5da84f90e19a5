package blob

import "context"

// Store holds uploaded note attachments. Uploads overwrite silently;
// PublicURL must not require a round trip.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}
