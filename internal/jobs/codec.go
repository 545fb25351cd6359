package jobs

import (
	"encoding/json"
	"fmt"
)

func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch t {
	case JobBulkGenerateCertificates:
		_, ok := payload.(BulkGenerateCertificatesPayload)

		if !ok {
			_, ok2 := payload.(*BulkGenerateCertificatesPayload)

			if !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}

	case JobGenerateCertificate:
		_, ok := payload.(GenerateCertificatePayload)

		if !ok {
			_, ok2 := payload.(*GenerateCertificatePayload)

			if !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals raw job payload bytes into the typed payload
// struct for the given type.
func DecodePayload(t JobType, raw []byte) (any, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(raw) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch t {
	case JobBulkGenerateCertificates:
		var p BulkGenerateCertificatesPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	case JobGenerateCertificate:
		var p GenerateCertificatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}
