package jobs

import "strings"

// ValidatePayload performs minimal validation on decoded payloads before
// they are enqueued or executed.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobBulkGenerateCertificates:
		var p BulkGenerateCertificatesPayload
		switch v := payload.(type) {
		case BulkGenerateCertificatesPayload:
			p = v
		case *BulkGenerateCertificatesPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.EventID) == "" {
			return ErrInvalidJobPayload
		}
		// an empty participant list is a valid batch (nothing to do),
		// but a list with blank ids is not
		for _, id := range p.ParticipantIDs {
			if trim(id) == "" {
				return ErrInvalidJobPayload
			}
		}
		return nil

	case JobGenerateCertificate:
		var p GenerateCertificatePayload
		switch v := payload.(type) {
		case GenerateCertificatePayload:
			p = v
		case *GenerateCertificatePayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.ParticipantID) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
