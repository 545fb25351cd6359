package jobs

import (
	"errors"
	"testing"
)

func TestEncodeDecodeBulkPayloadRoundTrip(t *testing.T) {
	tid := "6a1b2c3d-0000-4000-8000-000000000001"

	in := BulkGenerateCertificatesPayload{
		EventID:        "e42b6ed3-0af3-49f0-9dcd-37aa7ed8c980",
		TemplateID:     &tid,
		ParticipantIDs: []string{"p-1", "p-2"},
		ActorID:        "admin-1",
		RequestID:      "req-1",
	}

	raw, err := EncodePayload(JobBulkGenerateCertificates, in)

	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := DecodePayload(JobBulkGenerateCertificates, raw)

	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	out, ok := decoded.(BulkGenerateCertificatesPayload)

	if !ok {
		t.Fatalf("decoded wrong type: %T", decoded)
	}

	if out.EventID != in.EventID {
		t.Errorf("eventID = %q, want %q", out.EventID, in.EventID)
	}
	if out.TemplateID == nil || *out.TemplateID != tid {
		t.Errorf("templateID not preserved: %v", out.TemplateID)
	}
	if len(out.ParticipantIDs) != 2 {
		t.Errorf("participantIDs = %v", out.ParticipantIDs)
	}
}

func TestEncodePayloadTypeMismatch(t *testing.T) {
	_, err := EncodePayload(JobBulkGenerateCertificates, GenerateCertificatePayload{ParticipantID: "p-1"})

	if !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("err = %v, want ErrPayloadTypeMismatch", err)
	}
}

func TestEncodePayloadUnknownType(t *testing.T) {
	_, err := EncodePayload(JobType("mystery"), BulkGenerateCertificatesPayload{})

	if !errors.Is(err, ErrInvalidJobType) {
		t.Fatalf("err = %v, want ErrInvalidJobType", err)
	}
}

func TestDecodePayloadRejectsEmptyAndGarbage(t *testing.T) {
	_, err := DecodePayload(JobBulkGenerateCertificates, nil)

	if !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("empty: err = %v, want ErrInvalidJobPayload", err)
	}

	_, err = DecodePayload(JobBulkGenerateCertificates, []byte("{not json"))

	if !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("garbage: err = %v, want ErrInvalidJobPayload", err)
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		jobType JobType
		payload any
		wantErr error
	}{
		{
			name:    "valid_bulk",
			jobType: JobBulkGenerateCertificates,
			payload: BulkGenerateCertificatesPayload{
				EventID:        "e-1",
				ParticipantIDs: []string{"p-1"},
			},
			wantErr: nil,
		},
		{
			// a roster that emptied while queued is a fine no-op batch
			name:    "empty_participant_list_is_valid",
			jobType: JobBulkGenerateCertificates,
			payload: BulkGenerateCertificatesPayload{EventID: "e-1"},
			wantErr: nil,
		},
		{
			name:    "blank_event_id",
			jobType: JobBulkGenerateCertificates,
			payload: BulkGenerateCertificatesPayload{EventID: "  "},
			wantErr: ErrInvalidJobPayload,
		},
		{
			name:    "blank_participant_id",
			jobType: JobBulkGenerateCertificates,
			payload: BulkGenerateCertificatesPayload{
				EventID:        "e-1",
				ParticipantIDs: []string{"p-1", " "},
			},
			wantErr: ErrInvalidJobPayload,
		},
		{
			name:    "wrong_payload_struct",
			jobType: JobGenerateCertificate,
			payload: BulkGenerateCertificatesPayload{EventID: "e-1"},
			wantErr: ErrPayloadTypeMismatch,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.jobType, tt.payload)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
