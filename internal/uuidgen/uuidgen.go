// Package uuidgen derives deterministic offline player UUIDs.
package uuidgen

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// Offline derives a deterministic UUID v3 for username, equal to the
// RFC 4122 v3 UUID of md5("OfflinePlayer:"+username).
func Offline(username string) string {
	sum := md5.Sum([]byte("OfflinePlayer:" + username))
	id, _ := uuid.FromBytes(sum[:])
	id.SetVersion(uuid.Version(3))
	id.SetVariant(uuid.RFC4122)
	return id.String()
}
