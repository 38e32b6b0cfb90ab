package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// roomIDCharset matches the short shareable codes players type in by hand.
const roomIDCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

const RoomIDLength = 5

// GenerateRoomID - generates a short opaque identifier for a room.
// Uniqueness against live rooms is the registry's job, not ours.
func GenerateRoomID() (string, error) {
	id := make([]byte, RoomIDLength)
	for i := range id {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomIDCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate room id: %w", err)
		}

		id[i] = roomIDCharset[n.Int64()]
	}

	return string(id), nil
}

// GenerateConnectionID - generates a new unique ID for a live connection.
func GenerateConnectionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate connection id: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
