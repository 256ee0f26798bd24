package rules

import (
	"strings"

	"github.com/edelagziel/SkyWatch/internal/model"
)

// PublicPolicyRule flags bucket policies containing Allow statements with
// wildcard principals over S3 actions. When the account has not set
// restrict_public_buckets, the finding escalates itself to CRITICAL.
type PublicPolicyRule struct{}

// NewPublicPolicyRule creates the S3 public-bucket-policy rule.
func NewPublicPolicyRule() *PublicPolicyRule {
	return &PublicPolicyRule{}
}

func (r *PublicPolicyRule) ID() string { return "S3_PUBLIC_POLICY" }

func (r *PublicPolicyRule) Version() string { return "1.0.0" }

func (r *PublicPolicyRule) DefaultSeverity() model.Severity { return model.SeverityHigh }

func (r *PublicPolicyRule) Supports(resourceType model.ResourceType) bool {
	return resourceType == model.ResourceTypeS3Bucket
}

func (r *PublicPolicyRule) Evaluate(snapshot *model.ResourceSnapshot, params map[string]interface{}) ([]FindingSpec, error) {
	raw, ok := snapshot.Metadata["bucket_policy"]
	if !ok || raw == nil {
		return nil, &SkippedMissingDataError{RuleID: r.ID(), MissingPaths: []string{"metadata.bucket_policy"}}
	}
	policy := asMap(raw)
	if policy == nil {
		return nil, &InvalidSchemaError{RuleID: r.ID(), Message: "metadata.bucket_policy must be an object"}
	}

	rawStatements, ok := policy["statements"]
	if !ok || rawStatements == nil {
		return nil, &SkippedMissingDataError{RuleID: r.ID(), MissingPaths: []string{"metadata.bucket_policy.statements"}}
	}
	statements, ok := rawStatements.([]interface{})
	if !ok {
		return nil, &InvalidSchemaError{RuleID: r.ID(), Message: "metadata.bucket_policy.statements must be a list"}
	}

	var publicStatements []interface{}
	for _, s := range statements {
		st := asMap(s)
		if st == nil {
			continue
		}
		effect, _ := st["effect"].(string)
		if !strings.EqualFold(effect, "allow") {
			continue
		}
		if !isWildcardPrincipal(st["principal"]) {
			continue
		}
		if !hasS3Action(normalizeToList(st["action"])) {
			continue
		}
		publicStatements = append(publicStatements, s)
	}

	if len(publicStatements) == 0 {
		return nil, nil
	}

	pab := asMap(snapshot.Metadata["public_access_block"])
	var restrictPublicBuckets interface{}
	if pab != nil {
		restrictPublicBuckets = pab["restrict_public_buckets"]
	}

	var severity model.Severity
	if v, ok := restrictPublicBuckets.(bool); ok && !v {
		severity = model.SeverityCritical
	}

	return []FindingSpec{
		{
			FindingKey:  "public_policy",
			Title:       "S3 bucket policy allows public access",
			Description: "The bucket policy contains Allow statements with wildcard principals.",
			Severity:    severity,
			Evidence: model.Evidence{
				Summary: "Public policy statements detected.",
				Observations: []model.Observation{
					{Path: "metadata.bucket_policy.statements", Value: publicStatements},
					{Path: "metadata.public_access_block.restrict_public_buckets", Value: restrictPublicBuckets},
				},
			},
			Remediation: model.Remediation{
				Summary: "Restrict bucket policy to trusted principals only.",
				Steps: []string{
					"Remove wildcard principals from Allow statements.",
					"Use least-privilege IAM principals (roles/users) and conditions.",
					"Enable/verify S3 Block Public Access settings (especially RestrictPublicBuckets).",
				},
				References: []string{
					"https://docs.aws.amazon.com/AmazonS3/latest/userguide/access-policy-language-overview.html",
					"https://docs.aws.amazon.com/AmazonS3/latest/userguide/access-control-block-public-access.html",
				},
			},
		},
	}, nil
}

// isWildcardPrincipal recognizes the normalized shapes collectors emit for
// "anyone": a bare "*" or {"AWS": "*"}.
func isWildcardPrincipal(principal interface{}) bool {
	if s, ok := principal.(string); ok {
		return strings.TrimSpace(s) == "*"
	}
	if m := asMap(principal); m != nil {
		if aws, ok := m["AWS"].(string); ok {
			return aws == "*"
		}
	}
	return false
}

func hasS3Action(actions []interface{}) bool {
	for _, a := range actions {
		if s, ok := a.(string); ok && strings.HasPrefix(strings.ToLower(s), "s3:") {
			return true
		}
	}
	return false
}
