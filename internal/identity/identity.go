// Package identity models the output of the external auth provider: a
// stable user id plus display metadata. How the caller authenticated is
// not this module's concern.
package identity

import (
	"net/http"
	"strings"
)

type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Valid reports whether the identity can act on a session.
func (i Identity) Valid() bool { return strings.TrimSpace(i.UID) != "" }

// Player-facing name with a fallback, mirroring how the original
// provider substitutes "Anonymous" for blank display names.
func (i Identity) Name() string {
	if n := strings.TrimSpace(i.DisplayName); n != "" {
		return n
	}
	return "Anonymous"
}

// FromHeaders extracts the authenticated caller from the X-User-*
// headers the upstream auth layer injects.
func FromHeaders(h http.Header) (Identity, bool) {
	id := Identity{
		UID:         strings.TrimSpace(h.Get("X-User-Id")),
		DisplayName: strings.TrimSpace(h.Get("X-User-Name")),
		Email:       strings.TrimSpace(h.Get("X-User-Email")),
	}
	return id, id.Valid()
}

// Headers renders the identity back into request headers; the client
// side of FromHeaders.
func (i Identity) Headers() map[string]string {
	h := map[string]string{}
	if i.UID != "" {
		h["X-User-Id"] = i.UID
	}
	if i.DisplayName != "" {
		h["X-User-Name"] = i.DisplayName
	}
	if i.Email != "" {
		h["X-User-Email"] = i.Email
	}
	return h
}
