package notifications

import "context"

// Email delivery itself lives outside this service; the pipeline only
// hands a "your certificate is ready" event to whatever implementation
// is wired in.

type CertificateIssuedInput struct {
	Email         string
	Name          string
	EventTitle    string
	CertificateID string
}

type Notifier interface {
	SendCertificateIssued(ctx context.Context, input CertificateIssuedInput) error
}
