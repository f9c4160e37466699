package storage

import "time"

// TokenType distinguishes single-purpose tokens.
type TokenType string

const (
	TokenEmailVerification TokenType = "email_verification"
	TokenPasswordReset     TokenType = "password_reset"
)

// Token is a hashed-at-rest single-use token. The raw value is never stored.
type Token struct {
	Type      TokenType `json:"type"`
	UserID    string    `json:"userId"`
	Hash      string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
}

// Valid reports whether the token is unused and unexpired at now.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && !t.Used && now.Before(t.ExpiresAt)
}

// User is the identity record. Email is always stored normalized.
type User struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	EmailVerified bool    `json:"emailVerified"`
	Name          *string `json:"name"`
	Image         *string `json:"image"`

	PasswordHash string `json:"-"`
	PasswordSalt string `json:"-"`

	VerificationToken *Token `json:"-"`
	ResetToken        *Token `json:"-"`

	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Clone returns a deep copy so backends never share mutable state with callers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Name = cloneString(u.Name)
	c.Image = cloneString(u.Image)
	c.VerificationToken = cloneToken(u.VerificationToken)
	c.ResetToken = cloneToken(u.ResetToken)
	c.LockedUntil = cloneTime(u.LockedUntil)
	c.LastLoginAt = cloneTime(u.LastLoginAt)
	return &c
}

// DeviceClass is the coarse device category parsed from a user agent.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceBot     DeviceClass = "bot"
	DeviceUnknown DeviceClass = "unknown"
)

// Device is client metadata derived from the user agent.
type Device struct {
	Browser string      `json:"browser,omitempty"`
	OS      string      `json:"os,omitempty"`
	Class   DeviceClass `json:"class,omitempty"`
}

// Session is the server-side proof of authentication.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	Device         Device    `json:"device"`
}

// Active reports whether the session is still valid at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// Clone returns a copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// RateLimitCounter is one fixed-window counter.
type RateLimitCounter struct {
	Count   int
	ResetAt time.Time
}

// TokenSlot selects which token field a guarded update checks.
type TokenSlot uint8

const (
	SlotVerification TokenSlot = iota + 1
	SlotReset
)

// TokenGuard makes an update conditional on a token still being present,
// unused and carrying Hash. Backends evaluate it atomically with the update.
type TokenGuard struct {
	Slot TokenSlot
	Hash string
}

// UserUpdate is a partial update. Nil fields are left unchanged; the
// Clear* flags null out optional fields.
type UserUpdate struct {
	Email         *string
	EmailVerified *bool
	Name          *string
	Image         *string

	PasswordHash *string
	PasswordSalt *string

	VerificationToken      *Token
	ClearVerificationToken bool
	ResetToken             *Token
	ClearResetToken        bool

	FailedLoginAttempts *int
	LockedUntil         *time.Time
	ClearLockedUntil    bool
	LastLoginAt         *time.Time

	// IfToken, when set, turns the update into a compare-and-set: it applies
	// only if the guarded token matches, otherwise ErrNotFound.
	IfToken *TokenGuard
}

// Apply mutates u in place. UpdatedAt is set to now. Backends that hold
// users as structs share this so patch semantics never diverge.
func (p UserUpdate) Apply(u *User, now time.Time) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.EmailVerified != nil {
		u.EmailVerified = *p.EmailVerified
	}
	if p.Name != nil {
		u.Name = cloneString(p.Name)
	}
	if p.Image != nil {
		u.Image = cloneString(p.Image)
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.PasswordSalt != nil {
		u.PasswordSalt = *p.PasswordSalt
	}
	if p.ClearVerificationToken {
		u.VerificationToken = nil
	}
	if p.VerificationToken != nil {
		u.VerificationToken = cloneToken(p.VerificationToken)
	}
	if p.ClearResetToken {
		u.ResetToken = nil
	}
	if p.ResetToken != nil {
		u.ResetToken = cloneToken(p.ResetToken)
	}
	if p.FailedLoginAttempts != nil {
		u.FailedLoginAttempts = *p.FailedLoginAttempts
	}
	if p.ClearLockedUntil {
		u.LockedUntil = nil
	}
	if p.LockedUntil != nil {
		u.LockedUntil = cloneTime(p.LockedUntil)
	}
	if p.LastLoginAt != nil {
		u.LastLoginAt = cloneTime(p.LastLoginAt)
	}
	u.UpdatedAt = now
}

// GuardHolds reports whether u satisfies the update's token guard.
func (p UserUpdate) GuardHolds(u *User) bool {
	if p.IfToken == nil {
		return true
	}
	var tok *Token
	switch p.IfToken.Slot {
	case SlotVerification:
		tok = u.VerificationToken
	case SlotReset:
		tok = u.ResetToken
	}
	return tok != nil && !tok.Used && tok.Hash != "" && tok.Hash == p.IfToken.Hash
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneToken(t *Token) *Token {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
