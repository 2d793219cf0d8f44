package model

import "time"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access_token"
	TokenTypeRefresh TokenType = "refresh_token"
)

// AuthTokenRole is an issued token. Timeout is the lifetime granted at issue.
type AuthTokenRole struct {
	Token   string        `json:"token"`
	Type    TokenType     `json:"type"`
	Timeout time.Duration `json:"timeout"`
	EndTime time.Time     `json:"endTime"`
	Role    string        `json:"role"`
}

func (t AuthTokenRole) IsTimeout(now time.Time) bool {
	return !now.Before(t.EndTime)
}

// AuthKey is a static credential. EncryptedSK is decrypted on demand.
type AuthKey struct {
	AK          string `json:"ak"`
	EncryptedSK []byte `json:"sk"`
	Role        string `json:"role"`
}

type Permission struct {
	Fitable Fitable `json:"fitable"`
}

// Matches reports whether p grants access to f. Empty fields of the
// permission act as wildcards.
func (p Permission) Matches(f Fitable) bool {
	match := func(want, got string) bool { return want == "" || want == got }
	return p.Fitable.GenericID == f.GenericID &&
		match(p.Fitable.GenericVersion, f.GenericVersion) &&
		match(p.Fitable.FitableID, f.FitableID) &&
		match(p.Fitable.FitableVersion, f.FitableVersion)
}

type RolePermissions struct {
	Role        string       `json:"role"`
	Permissions []Permission `json:"permissions"`
}
