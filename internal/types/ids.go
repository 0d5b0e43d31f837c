// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type RequestID string
type ResponseID string
type SampleID string

func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}

func NewResponseID() ResponseID {
	return ResponseID(uuid.New().String())
}

func NewSampleID() SampleID {
	return SampleID(uuid.New().String())
}
