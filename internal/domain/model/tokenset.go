package model

import "encoding/json"

// Sub-token keys the refresh exchange is allowed to replace. Any other key
// present in a stored TokenSet passes through a merge unchanged.
const (
	TokenKeyAccess  = "access_token"
	TokenKeyRefresh = "refresh_token"
)

// TokenSet is the decrypted marketplace credential: a small map of named
// sub-tokens. The marketplace hands out more cookies than the engine
// understands, so unknown keys are preserved verbatim.
type TokenSet map[string]string

// TokenPair is the result of a successful refresh exchange.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AccessToken returns the access sub-token, or "" if absent.
func (t TokenSet) AccessToken() string { return t[TokenKeyAccess] }

// RefreshToken returns the refresh sub-token, or "" if absent.
func (t TokenSet) RefreshToken() string { return t[TokenKeyRefresh] }

// Merge returns a copy of the set with the known sub-token keys replaced by
// the renewed pair. Unrecognized keys are carried over untouched.
func (t TokenSet) Merge(renewed TokenPair) TokenSet {
	out := make(TokenSet, len(t))
	for k, v := range t {
		out[k] = v
	}
	if renewed.AccessToken != "" {
		out[TokenKeyAccess] = renewed.AccessToken
	}
	if renewed.RefreshToken != "" {
		out[TokenKeyRefresh] = renewed.RefreshToken
	}
	return out
}

// Encode serializes the set for encryption.
func (t TokenSet) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeTokenSet parses a serialized TokenSet produced by Encode.
func DecodeTokenSet(s string) (TokenSet, error) {
	var t TokenSet
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, err
	}
	return t, nil
}
