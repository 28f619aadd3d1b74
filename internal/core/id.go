package core

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewID returns a fresh expense identifier (24 hex characters, ObjectID layout).
// Every backend uses this format so ids look the same whatever stores them.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ParseID checks id against the identifier format and returns its ObjectID form.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// ValidID reports whether id conforms to the identifier format.
func ValidID(id string) bool {
	_, err := ParseID(id)
	return err == nil
}
