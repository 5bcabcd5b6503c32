package domain

// Tokens is the session pair handed to a caller after authentication.
// Sessions are stateless: nothing here is persisted.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// AuthEnvelope is returned by every endpoint that authenticates a caller.
type AuthEnvelope struct {
	Tokens
	User *User `json:"user"`
}
