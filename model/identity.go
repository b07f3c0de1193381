package model

// Identity is the cached credential of an authenticated user. The token is
// opaque to the gateway and only forwarded to the collaborators.
type Identity struct {
	UserId string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Token  string `json:"token"`
	Role   string `json:"role,omitempty"`
}
