package rules

import (
	"github.com/edelagziel/SkyWatch/internal/model"
)

// SecureTransportRule flags buckets that do not require TLS for access.
// A missing transport indicator is treated as insecure, so this rule
// never skips.
type SecureTransportRule struct{}

// NewSecureTransportRule creates the S3 TLS-enforcement rule.
func NewSecureTransportRule() *SecureTransportRule {
	return &SecureTransportRule{}
}

func (r *SecureTransportRule) ID() string { return "S3_TLS_NOT_ENFORCED" }

func (r *SecureTransportRule) Version() string { return "1.0.0" }

func (r *SecureTransportRule) DefaultSeverity() model.Severity { return model.SeverityMedium }

func (r *SecureTransportRule) Supports(resourceType model.ResourceType) bool {
	return resourceType == model.ResourceTypeS3Bucket
}

func (r *SecureTransportRule) Evaluate(snapshot *model.ResourceSnapshot, params map[string]interface{}) ([]FindingSpec, error) {
	transport := asMap(snapshot.Metadata["transport"])

	var requiresTLS interface{}
	if transport != nil {
		requiresTLS = transport["requires_tls"]
	}
	if v, ok := requiresTLS.(bool); ok && v {
		return nil, nil
	}

	return []FindingSpec{
		{
			FindingKey:  "tls_not_enforced",
			Title:       "S3 bucket policy does not enforce TLS-only access",
			Description: "The bucket does not appear to require TLS (HTTPS) for access.",
			Evidence: model.Evidence{
				Summary: "TLS is not enforced or the indicator is missing.",
				Observations: []model.Observation{
					{Path: "metadata.transport.requires_tls", Value: requiresTLS},
				},
			},
			Remediation: model.Remediation{
				Summary: "Enforce TLS-only access to the bucket.",
				Steps: []string{
					"Add a bucket policy statement that denies requests where aws:SecureTransport is false.",
					"Validate clients access the bucket using HTTPS endpoints.",
				},
				References: []string{
					"https://docs.aws.amazon.com/AmazonS3/latest/userguide/example-bucket-policies.html#example-bucket-policies-use-secure-transport",
				},
			},
		},
	}, nil
}
