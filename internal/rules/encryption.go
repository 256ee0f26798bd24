package rules

import (
	"github.com/edelagziel/SkyWatch/internal/model"
)

// EncryptionEnabledRule flags buckets without encryption at rest. A missing
// encryption block is treated as insecure, so this rule never skips.
type EncryptionEnabledRule struct{}

// NewEncryptionEnabledRule creates the S3 encryption-at-rest rule.
func NewEncryptionEnabledRule() *EncryptionEnabledRule {
	return &EncryptionEnabledRule{}
}

func (r *EncryptionEnabledRule) ID() string { return "S3_ENCRYPTION_DISABLED" }

func (r *EncryptionEnabledRule) Version() string { return "1.0.0" }

func (r *EncryptionEnabledRule) DefaultSeverity() model.Severity { return model.SeverityHigh }

func (r *EncryptionEnabledRule) Supports(resourceType model.ResourceType) bool {
	return resourceType == model.ResourceTypeS3Bucket
}

func (r *EncryptionEnabledRule) Evaluate(snapshot *model.ResourceSnapshot, params map[string]interface{}) ([]FindingSpec, error) {
	encryption := asMap(snapshot.Metadata["encryption"])

	if encryption != nil {
		if enabled, ok := encryption["enabled"].(bool); ok && enabled {
			return nil, nil
		}
	}

	var obs []model.Observation
	if encryption != nil {
		if v, ok := encryption["enabled"]; ok {
			obs = append(obs, model.Observation{Path: "metadata.encryption.enabled", Value: v})
		}
	}
	if obs == nil {
		obs = append(obs, model.Observation{Path: "metadata.encryption", Value: snapshot.Metadata["encryption"]})
	}

	return []FindingSpec{
		{
			FindingKey:  "encryption_disabled",
			Title:       "S3 bucket encryption at rest is not enabled",
			Description: "The bucket is missing encryption-at-rest configuration (SSE-S3 or SSE-KMS).",
			Evidence: model.Evidence{
				Summary:      "Bucket encryption is disabled or missing.",
				Observations: obs,
			},
			Remediation: model.Remediation{
				Summary: "Enable default encryption on the bucket.",
				Steps: []string{
					"Enable SSE-S3 or SSE-KMS default encryption for the bucket.",
					"Optionally enforce encryption via a bucket policy to deny unencrypted uploads.",
				},
				References: []string{
					"https://docs.aws.amazon.com/AmazonS3/latest/userguide/bucket-encryption.html",
				},
			},
		},
	}, nil
}
