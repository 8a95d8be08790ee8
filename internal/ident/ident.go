// Package ident generates record identifiers.
//
// Identifiers are 24 lowercase hex digits (a 12 byte object id): a 4 byte
// creation timestamp followed by process-random and counter bytes, so ids
// sort roughly by creation time and carry no record content.
package ident

import (
	"encoding/hex"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Generator produces new record identifiers.
type Generator interface {
	NewID() string
}

type objectIDs struct{}

// ObjectIDs returns the default generator.
func ObjectIDs() Generator {
	return objectIDs{}
}

func (objectIDs) NewID() string {
	return bson.NewObjectID().Hex()
}

// Valid reports whether id has the shape of a generated identifier.
func Valid(id string) bool {
	if len(id) != 24 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
