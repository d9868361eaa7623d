package ir

// Fixed values of the access table written for a bundle-identifier grant.
// The table is owned by the host; these must match its schema exactly.
const (
	AccessTable = "access"

	ClientTypeBundleID = 0
	AuthValueGranted   = 2
	AuthReasonUserSet  = 4
	AuthVersion        = 1
	AccessFlags        = 0

	// IndirectObjectUnused fills indirect_object_identifier for rows that
	// do not target another application.
	IndirectObjectUnused = "UNUSED"
)

// AuthorizationRecord mirrors one row of the access table.
type AuthorizationRecord struct {
	Service                  string `json:"service"`
	Client                   string `json:"client"`
	ClientType               int    `json:"client_type"`
	AuthValue                int    `json:"auth_value"`
	AuthReason               int    `json:"auth_reason"`
	AuthVersion              int    `json:"auth_version"`
	IndirectObjectIdentifier string `json:"indirect_object_identifier"`
	Flags                    int    `json:"flags"`
	LastModified             int64  `json:"last_modified"`
}

// NewGrantRecord builds the row written for a grant.
func NewGrantRecord(service ServiceKind, client string, now int64) AuthorizationRecord {
	return AuthorizationRecord{
		Service:                  service.StoreKey(),
		Client:                   client,
		ClientType:               ClientTypeBundleID,
		AuthValue:                AuthValueGranted,
		AuthReason:               AuthReasonUserSet,
		AuthVersion:              AuthVersion,
		IndirectObjectIdentifier: IndirectObjectUnused,
		Flags:                    AccessFlags,
		LastModified:             now,
	}
}

// Granted reports whether an auth_value means granted.
func Granted(authValue int) bool {
	return authValue == AuthValueGranted
}
