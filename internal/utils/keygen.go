package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateCartKey returns the opaque key stored in the anonymous cart cookie.
// Format: cart_<uuid without dashes>
func GenerateCartKey() string {
	return "cart_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SubscriberID builds the id of a push subscriber.
// Example: ws-3f2a9c1d
func SubscriberID(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])
}
