package chat

import (
	security "ChatWave/tools/security"
)

// JWTVerifier is the default TokenVerifier, validating HMAC-signed chat
// tokens. It performs no network calls.
type JWTVerifier struct {
	opts security.Options
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{opts: security.DefaultOptions(secret)}
}

func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	claims, err := security.Verify(v.opts, token)
	if err != nil {
		return nil, err
	}
	name := claims.DisplayName
	if name == "" {
		name = claims.UserID
	}
	return &Identity{ID: claims.UserID, DisplayName: name, Avatar: claims.Avatar}, nil
}
