package rules

// Public S3 grantee group URIs. Grants to either group expose the bucket
// beyond the owning account.
const (
	awsAllUsersURI  = "http://acs.amazonaws.com/groups/global/AllUsers"
	awsAuthUsersURI = "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"
)

func isPublicGranteeURI(uri string) bool {
	return uri == awsAllUsersURI || uri == awsAuthUsersURI
}

// asMap returns the value as an object, or nil when it is anything else.
func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// normalizeToList accepts scalar-or-list metadata values, mirroring how
// collectors normalize single-element fields.
func normalizeToList(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}
