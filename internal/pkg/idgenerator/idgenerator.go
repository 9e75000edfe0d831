// nolint: gochecknoglobals
package idgenerator

import (
	"github.com/gofrs/uuid/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	OrderIDLength        = 16
	VideoJobIDLength     = 20
	ConversationIDLength = 20
)

// alphabet used in ID generation.
var alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func OrderID() string {
	return gonanoid.MustGenerate(alphabet, OrderIDLength)
}

func VideoJobID() string {
	return gonanoid.MustGenerate(alphabet, VideoJobIDLength)
}

func ConversationID() string {
	return gonanoid.MustGenerate(alphabet, ConversationIDLength)
}

func Random(length int) string {
	return gonanoid.MustGenerate(alphabet, length)
}

// RequestID is used for idempotency keys sent to the external backends.
func RequestID() string {
	return uuid.Must(uuid.NewV4()).String()
}
