package jobs

type JobType string

const (
	JobBulkGenerateCertificates JobType = "bulk_generate_certificates"
	JobGenerateCertificate      JobType = "generate_certificate"
)

// check to see if the job type is a known constant

func (t JobType) IsValid() bool {
	switch t {
	case JobBulkGenerateCertificates, JobGenerateCertificate:
		return true
	default:
		return false
	}
}
