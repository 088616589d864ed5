package domain

// Credentials are the client-side persisted auth values: the bearer token
// plus the session and person ids returned by login. Written on login,
// purged on logout or on a 401 response.
type Credentials struct {
	AuthToken string `json:"authToken"`
	UserID    int64  `json:"userId"`
	SessionID int64  `json:"sessionId"`
}
