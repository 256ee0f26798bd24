package rules

import (
	"fmt"
	"strings"

	"github.com/edelagziel/SkyWatch/internal/model"
)

// PublicACLRule flags buckets whose ACL grants access to the public
// AllUsers or AuthenticatedUsers groups.
type PublicACLRule struct{}

// NewPublicACLRule creates the S3 public-ACL rule.
func NewPublicACLRule() *PublicACLRule {
	return &PublicACLRule{}
}

func (r *PublicACLRule) ID() string { return "S3_PUBLIC_ACL" }

func (r *PublicACLRule) Version() string { return "1.0.0" }

func (r *PublicACLRule) DefaultSeverity() model.Severity { return model.SeverityHigh }

func (r *PublicACLRule) Supports(resourceType model.ResourceType) bool {
	return resourceType == model.ResourceTypeS3Bucket
}

func (r *PublicACLRule) Evaluate(snapshot *model.ResourceSnapshot, params map[string]interface{}) ([]FindingSpec, error) {
	raw, ok := snapshot.Metadata["acl_grants"]
	if !ok || raw == nil {
		return nil, &SkippedMissingDataError{RuleID: r.ID(), MissingPaths: []string{"metadata.acl_grants"}}
	}
	grants, ok := raw.([]interface{})
	if !ok {
		return nil, &InvalidSchemaError{RuleID: r.ID(), Message: "metadata.acl_grants must be a list"}
	}

	var offending []interface{}
	for _, g := range grants {
		grant := asMap(g)
		if grant == nil {
			continue
		}
		uri, _ := grant["grantee_uri"].(string)
		perm := strings.ToUpper(fmt.Sprint(grant["permission"]))
		if isPublicGranteeURI(uri) &&
			(strings.Contains(perm, "READ") || strings.Contains(perm, "FULL_CONTROL") || strings.Contains(perm, "WRITE")) {
			offending = append(offending, g)
		}
	}

	if len(offending) == 0 {
		return nil, nil
	}

	return []FindingSpec{
		{
			FindingKey:  "public_acl",
			Title:       "S3 bucket is publicly accessible via ACL",
			Description: "The bucket ACL grants public group access (AllUsers/AuthenticatedUsers).",
			Evidence: model.Evidence{
				Summary: "Public ACL grants detected.",
				Observations: []model.Observation{
					{Path: "metadata.acl_grants", Value: offending},
				},
			},
			Remediation: model.Remediation{
				Summary: "Remove public ACL grants and enable Public Access Block.",
				Steps: []string{
					"Remove ACL grants to AllUsers and AuthenticatedUsers.",
					"Enable S3 Block Public Access settings for the bucket/account.",
				},
				References: []string{
					"https://docs.aws.amazon.com/AmazonS3/latest/userguide/access-control-block-public-access.html",
				},
			},
		},
	}, nil
}
