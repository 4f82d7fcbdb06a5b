package model

// Identity is the provider-issued principal for the current session. UID is
// the provider's own identifier and carries no relation to the backend's
// numeric profile id; correlating the two is the session machine's job.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}
