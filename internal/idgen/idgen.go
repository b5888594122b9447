// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the entity families that get generated IDs.
const (
	FactPrefix     = "ft-"
	ItemPrefix     = "itm-"
	CustomerPrefix = "cus-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Fact returns a new unique fact event ID.
func Fact() (string, error) {
	return GenerateWithPrefix(FactPrefix)
}

// Item returns a new unique item ID.
func Item() (string, error) {
	return GenerateWithPrefix(ItemPrefix)
}

// Customer returns a new unique customer ID.
func Customer() (string, error) {
	return GenerateWithPrefix(CustomerPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
