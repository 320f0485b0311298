// Package social turns provider-issued ID tokens into the Profile consumed
// by Engine.SocialLogin and Engine.Link. Verification happens against the
// provider's published keys; nothing here trusts the token payload before
// the signature and audience check out.
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"

	goIdentity "github.com/Veltherin/goIdentity"
)

const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// VerifyGoogleIDToken validates a Google-issued ID token against the expected
// OAuth client id and maps it to a Profile.
func VerifyGoogleIDToken(ctx context.Context, tokenString, expectedAud string) (*goIdentity.Profile, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, errors.New("missing id token")
	}
	if strings.TrimSpace(expectedAud) == "" {
		return nil, errors.New("missing google client id")
	}

	payload, err := idtoken.Validate(ctx, tokenString, expectedAud)
	if err != nil {
		return nil, err
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return nil, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	profile := &goIdentity.Profile{
		Provider: ProviderGoogle,
		Subject:  payload.Subject,
	}
	if raw, ok := payload.Claims["email"].(string); ok {
		profile.Email = strings.TrimSpace(strings.ToLower(raw))
	}
	if raw, ok := payload.Claims["given_name"].(string); ok {
		profile.FirstName = raw
	}
	if raw, ok := payload.Claims["family_name"].(string); ok {
		profile.LastName = raw
	}
	if raw, ok := payload.Claims["picture"].(string); ok {
		profile.AvatarURL = raw
	}
	return profile, nil
}

// VerifyAppleIDToken validates an Apple-issued ID token against the expected
// service id and maps it to a Profile. Apple tokens carry no name or avatar.
func VerifyAppleIDToken(ctx context.Context, tokenString, expectedAud string) (*goIdentity.Profile, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, errors.New("missing id token")
	}
	if strings.TrimSpace(expectedAud) == "" {
		return nil, errors.New("missing apple service id")
	}

	client := validator.NewClient()
	idTok, err := client.VerifyIdToken(expectedAud, tokenString)
	if err != nil {
		return nil, err
	}
	if idTok.Iss != "https://appleid.apple.com" {
		return nil, fmt.Errorf("unexpected issuer: %s", idTok.Iss)
	}

	return &goIdentity.Profile{
		Provider: ProviderApple,
		Subject:  idTok.Sub,
		Email:    strings.TrimSpace(strings.ToLower(idTok.Email)),
	}, nil
}
