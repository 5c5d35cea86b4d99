package entity

import "strconv"

type IdentityKind string

const (
	IdentityAnonymous IdentityKind = "anonymous"
	IdentityUser      IdentityKind = "authenticated"
	IdentityNonUser   IdentityKind = "nonuser"
)

// Identity is the canonical actor behind a request or a live connection.
// Exactly one of UserID, NonUserID or ConnID is meaningful, depending on Kind.
type Identity struct {
	Kind      IdentityKind `json:"kind"`
	UserID    int64        `json:"user_id,omitempty"`
	NonUserID string       `json:"non_user_id,omitempty"`
	IPAddress string       `json:"-"`
	ConnID    string       `json:"-"`
}

func UserIdentity(userID int64) Identity {
	return Identity{Kind: IdentityUser, UserID: userID}
}

func NonUserIdentity(token, ip string) Identity {
	return Identity{Kind: IdentityNonUser, NonUserID: token, IPAddress: ip}
}

func AnonymousIdentity(connID string) Identity {
	return Identity{Kind: IdentityAnonymous, ConnID: connID}
}

func (i Identity) IsUser() bool    { return i.Kind == IdentityUser }
func (i Identity) IsNonUser() bool { return i.Kind == IdentityNonUser }

// Key is the registry key, e.g. "authenticated:42", "nonuser:abc", "anonymous:<conn>".
func (i Identity) Key() string {
	switch i.Kind {
	case IdentityUser:
		return string(i.Kind) + ":" + strconv.FormatInt(i.UserID, 10)
	case IdentityNonUser:
		return string(i.Kind) + ":" + i.NonUserID
	default:
		return string(IdentityAnonymous) + ":" + i.ConnID
	}
}
