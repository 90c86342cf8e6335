package upsert

import "github.com/google/uuid"

// NewJobID generates a time-ordered job identifier, generalized from
// the teacher's GenerateKey() (document key generation) to job ids
// for a ShardWriteRequest batch.
func NewJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id.String()
}
