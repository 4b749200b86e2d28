// Package storage keeps rendered report images somewhere the messaging
// platform can fetch them from over HTTPS.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store saves an object and returns its public URL.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// ObjectName builds a unique file name for a rendered report.
func ObjectName(prefix string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s%s", prefix, t.Format("20060102_150405"), uuid.NewString()[:8], ext)
}
