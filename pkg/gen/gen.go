// Package gen provides utility functions for generating identifiers.
package gen

import (
	"strconv"

	"github.com/google/uuid"
)

const sep = "|"

// Key joins parts with a separator that does not occur in row numbers.
func Key(parts ...string) string {
	key := ""

	for i, part := range parts {
		if i > 0 {
			key += sep
		}

		key += part
	}

	return key
}

// UUIDv5 generates a name based UUID from the provided parts.
func UUIDv5(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(Key(parts...))).String()
}

// ItemID returns a stable identifier for a spreadsheet row, used to correlate log lines.
func ItemID(url string, row int) string {
	return UUIDv5(url, strconv.Itoa(row))
}

// RunID returns a random identifier for one batch run.
func RunID() string {
	return uuid.NewString()
}
