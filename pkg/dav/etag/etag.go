// Package etag computes entity tags for WebDAV resources.
package etag

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"
)

// Compute returns the entity tag of a resource at its current version.
//
// The tag is the SHA-1 of the resource identity and its modification time
// in Unix milliseconds, joined by a NUL byte, rendered as a quoted HTTP
// entity-tag. The same string appears in the ETag header, in the getetag
// property and inside "[...]" terms of If headers, so clients can copy it
// verbatim between them.
func Compute(resourceID string, lastModified time.Time) string {
	sum := sha1.Sum([]byte(resourceID + "\x00" + strconv.FormatInt(lastModified.UnixMilli(), 10)))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
