package goIdentity

import (
	"context"
	"time"
)

// AccountStatus represents the enabled/disabled lifecycle state of an account.
// It is orthogonal to email verification and two-factor state.
type AccountStatus uint8

const (
	// AccountEnabled is the default state; the account may authenticate once
	// verified.
	AccountEnabled AccountStatus = iota
	// AccountDisabled blocks every authentication path until re-enabled.
	AccountDisabled
)

// TOTPSettings carries the two-factor state of an account. Secret is present
// only while a provisioning flow is pending confirmation or two-factor is
// enabled; disabling clears it.
type TOTPSettings struct {
	Enabled bool
	Secret  string // base32, no padding
}

// Account is the aggregate root owned by [AccountRepository]. It is mutated
// only through Engine operations; callers outside the engine see the
// sanitized [PublicAccount] instead.
//
// Nullable string fields use the empty string as absent; nullable timestamps
// use the zero time.
type Account struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string

	PasswordHash string
	Passwordless bool

	Roles []string
	Plan  string

	Status   AccountStatus
	Verified bool

	VerificationToken string

	PasswordlessToken        string
	PasswordlessTokenExpires time.Time

	ResetToken        string
	ResetTokenExpires time.Time

	TOTP TOTPSettings

	// SocialLinks maps a provider name to the external subject identifier
	// asserted by that provider. A provider+subject pair is unique across the
	// whole account population.
	SocialLinks map[string]string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt time.Time
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate the canonical record in place.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	dup := *a
	if a.Roles != nil {
		dup.Roles = append([]string(nil), a.Roles...)
	}
	if a.SocialLinks != nil {
		dup.SocialLinks = make(map[string]string, len(a.SocialLinks))
		for k, v := range a.SocialLinks {
			dup.SocialLinks[k] = v
		}
	}
	return &dup
}

// PublicAccount is the sanitized projection of [Account] that crosses the
// engine boundary. It never carries the password hash, verification or
// magic-link or reset tokens, or the TOTP secret.
type PublicAccount struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string

	Roles []string
	Plan  string

	Status           AccountStatus
	Verified         bool
	TwoFactorEnabled bool
	Passwordless     bool

	SocialProviders []string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt time.Time
}

// Query is the predicate accepted by [AccountRepository.FindOne]. Exactly one
// lookup field should be set, except Provider+Subject which form a single
// social-link lookup and Login which matches email or username.
type Query struct {
	Login             string // matches email OR username
	Email             string
	Username          string
	VerificationToken string
	PasswordlessToken string
	ResetToken        string

	Provider string
	Subject  string
}

// SocialLink names one provider association for [Patch].
type SocialLink struct {
	Provider string
	Subject  string
}

// Patch is a partial update applied by [AccountRepository.UpdateByID]. Nil
// fields are left unchanged; a pointer to the zero value clears the field.
//
// The Expect* guards make token consumption a compare-and-set: when non-nil
// the stored token must equal the expectation at update time or the store
// fails the whole update with [ErrInvalidToken]. This is what keeps
// single-use tokens single-use under concurrent requests.
type Patch struct {
	Username     *string
	PasswordHash *string
	Passwordless *bool

	Status   *AccountStatus
	Verified *bool

	VerificationToken *string

	PasswordlessToken        *string
	PasswordlessTokenExpires *time.Time

	ResetToken        *string
	ResetTokenExpires *time.Time

	TOTPEnabled *bool
	TOTPSecret  *string

	SetSocialLink    *SocialLink
	RemoveSocialLink *string

	LastLoginAt *time.Time

	ExpectVerificationToken *string
	ExpectPasswordlessToken *string
	ExpectResetToken        *string
}

// Apply mutates a in place according to the patch, enforcing the Expect*
// guards first and stamping UpdatedAt. Store implementations call this under
// their own atomic update primitive.
func (p Patch) Apply(a *Account, now time.Time) error {
	if p.ExpectVerificationToken != nil && a.VerificationToken != *p.ExpectVerificationToken {
		return ErrInvalidToken
	}
	if p.ExpectPasswordlessToken != nil && a.PasswordlessToken != *p.ExpectPasswordlessToken {
		return ErrInvalidToken
	}
	if p.ExpectResetToken != nil && a.ResetToken != *p.ExpectResetToken {
		return ErrInvalidToken
	}

	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.Passwordless != nil {
		a.Passwordless = *p.Passwordless
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Verified != nil {
		a.Verified = *p.Verified
	}
	if p.VerificationToken != nil {
		a.VerificationToken = *p.VerificationToken
	}
	if p.PasswordlessToken != nil {
		a.PasswordlessToken = *p.PasswordlessToken
	}
	if p.PasswordlessTokenExpires != nil {
		a.PasswordlessTokenExpires = *p.PasswordlessTokenExpires
	}
	if p.ResetToken != nil {
		a.ResetToken = *p.ResetToken
	}
	if p.ResetTokenExpires != nil {
		a.ResetTokenExpires = *p.ResetTokenExpires
	}
	if p.TOTPEnabled != nil {
		a.TOTP.Enabled = *p.TOTPEnabled
	}
	if p.TOTPSecret != nil {
		a.TOTP.Secret = *p.TOTPSecret
	}
	if p.SetSocialLink != nil {
		if a.SocialLinks == nil {
			a.SocialLinks = make(map[string]string, 1)
		}
		a.SocialLinks[p.SetSocialLink.Provider] = p.SetSocialLink.Subject
	}
	if p.RemoveSocialLink != nil {
		delete(a.SocialLinks, *p.RemoveSocialLink)
	}
	if p.LastLoginAt != nil {
		a.LastLoginAt = *p.LastLoginAt
	}

	a.UpdatedAt = now
	return nil
}

// AccountRepository is the persistence boundary. Each call is assumed atomic;
// the store's unique constraints on email, username, and provider+subject are
// the source of truth for uniqueness, not the engine's pre-checks.
//
// Lookups that match nothing return [ErrUserNotFound]. Constraint violations
// surface as [ErrEmailExists], [ErrUsernameExists], or
// [ErrSocialAccountMismatch]. Any other failure is treated by the engine as
// retryable infrastructure trouble.
type AccountRepository interface {
	FindOne(ctx context.Context, q Query) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Insert(ctx context.Context, a *Account) (*Account, error)
	UpdateByID(ctx context.Context, id string, p Patch) (*Account, error)
	DeleteByID(ctx context.Context, id string) error
}

// NotificationGateway delivers one transactional message. Delivery is
// best-effort: the engine retries a bounded number of times with a per-send
// timeout and logs the final failure, but never fails the triggering
// operation because of it.
type NotificationGateway interface {
	Send(ctx context.Context, to, template string, data map[string]any) error
}

// Notification template names passed to [NotificationGateway.Send].
const (
	NotifyWelcome         = "welcome"
	NotifyActivate        = "activate"
	NotifyMagicLink       = "magic-link"
	NotifyResetPassword   = "reset-password"
	NotifyPasswordChanged = "password-changed"
)

// RegisterRequest is the input for [Engine.Register]. Email, FirstName and
// LastName are required; Username is required only when the username feature
// is enabled; Password may be empty when passwordless signup is enabled.
type RegisterRequest struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// LoginRequest is the input for [Engine.Login]. Login matches the account
// email, or the username when that feature is enabled.
type LoginRequest struct {
	Login    string
	Password string
	TOTPCode string
}

// AuthResult is returned by every operation that can authenticate. When
// PasswordlessPending is true a magic link was emailed instead of issuing a
// session token; that is a successful outcome, not an error.
type AuthResult struct {
	Account   *PublicAccount
	Token     string
	ExpiresAt time.Time

	PasswordlessPending bool
}

// TwoFactorSetup is returned by [Engine.ProvisionTwoFactor]. Two-factor is
// not active until [Engine.ConfirmTwoFactor] accepts the first code.
type TwoFactorSetup struct {
	Secret     string
	OTPAuthURI string
}

// Profile is an identity assertion from an external provider, consumed by
// [Engine.SocialLogin] and [Engine.Link]. Subject is the provider's stable
// identifier for the user.
type Profile struct {
	Provider  string
	Subject   string
	Email     string
	Username  string
	FirstName string
	LastName  string
	AvatarURL string
}
