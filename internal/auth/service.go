package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"planning/internal/apperr"
	"planning/internal/logging"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

const (
	DisplayNameMinLen = 2
	PasswordMinLen    = 6
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ResetDispatcher queues delivery of a password reset token.
type ResetDispatcher interface {
	EnqueuePasswordReset(ctx context.Context, userID, email, token string) error
}

// Service is the auth provider: accounts, sign-in and sign-out, resets and
// profile edits. Every operation that changes who is signed in updates the
// caller's Session.
type Service struct {
	DB        *gorm.DB
	JWT       *JWT
	Federated *FederatedVerifier
	Resets    ResetDispatcher
	ResetTTL  time.Duration
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

type SignUpInput struct {
	DisplayName     string `json:"display_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type ProfileInput struct {
	DisplayName *string `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}

// Result is a signed-in user and its session token.
type Result struct {
	User  User
	Token string
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateSignUp checks the registration form. Field keys are displayName,
// email, password and confirmPassword.
func ValidateSignUp(in SignUpInput) error {
	fields := map[string]string{}
	if utf8.RuneCountInString(strings.TrimSpace(in.DisplayName)) < DisplayNameMinLen {
		fields["displayName"] = "display name must be at least 2 characters"
	}
	if e := strings.TrimSpace(in.Email); e == "" {
		fields["email"] = "email is required"
	} else if !emailRe.MatchString(e) {
		fields["email"] = "email is invalid"
	}
	if len(in.Password) < PasswordMinLen {
		fields["password"] = "password must be at least 6 characters"
	}
	if in.ConfirmPassword != in.Password {
		fields["confirmPassword"] = "passwords do not match"
	}
	if len(fields) > 0 {
		return apperr.NewValidationError(fields)
	}
	return nil
}

func validateSignIn(email, password string) error {
	fields := map[string]string{}
	if e := strings.TrimSpace(email); e == "" {
		fields["email"] = "email is required"
	} else if !emailRe.MatchString(e) {
		fields["email"] = "email is invalid"
	}
	if password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		return apperr.NewValidationError(fields)
	}
	return nil
}

func (s *Service) SignUp(ctx context.Context, sess *Session, in SignUpInput) (Result, error) {
	if err := ValidateSignUp(in); err != nil {
		return Result{}, err
	}
	email := normalizeEmail(in.Email)

	var n int64
	if err := s.DB.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return Result{}, apperr.NewStoreError("sign up", err)
	}
	if n > 0 {
		return Result{}, apperr.NewAuthError("sign up", ErrEmailTaken)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Result{}, apperr.NewAuthError("sign up", err)
	}

	now := s.now()
	u := User{
		Email:        email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.DB.WithContext(ctx).Create(&u).Error; err != nil {
		logging.Auth().Error().Err(err).Str("email", email).Msg("create user failed")
		return Result{}, apperr.NewAuthError("sign up", ErrEmailTaken)
	}

	return s.signedIn(sess, u, "sign up")
}

func (s *Service) SignIn(ctx context.Context, sess *Session, email, password string) (Result, error) {
	if err := validateSignIn(email, password); err != nil {
		return Result{}, err
	}

	var u User
	if err := s.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, apperr.NewAuthError("sign in", ErrInvalidCredentials)
		}
		return Result{}, apperr.NewStoreError("sign in", err)
	}
	if !ComparePassword(u.PasswordHash, password) {
		return Result{}, apperr.NewAuthError("sign in", ErrInvalidCredentials)
	}

	return s.signedIn(sess, u, "sign in")
}

// SignInWithFederatedProvider accepts a broker identity token. The account
// is found by (provider, subject), then by email, and created otherwise.
func (s *Service) SignInWithFederatedProvider(ctx context.Context, sess *Session, idToken string) (Result, error) {
	fc, err := s.Federated.Verify(idToken)
	if err != nil {
		return Result{}, apperr.NewAuthError("federated sign in", err)
	}

	var u User
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider = ? AND provider_subject = ?", fc.Issuer, fc.Subject).First(&u).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := s.now()
		err = tx.Where("email = ?", fc.Email).First(&u).Error
		switch {
		case err == nil:
			updates := map[string]any{
				"provider":         fc.Issuer,
				"provider_subject": fc.Subject,
				"updated_at":       now,
			}
			if u.DisplayName == "" {
				updates["display_name"] = strings.TrimSpace(fc.Name)
			}
			if u.PhotoURL == "" {
				updates["photo_url"] = fc.Picture
			}
			if err := tx.Model(&u).Updates(updates).Error; err != nil {
				return err
			}
			return tx.Where("id = ?", u.ID).First(&u).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			u = User{
				Email:           fc.Email,
				DisplayName:     strings.TrimSpace(fc.Name),
				PhotoURL:        fc.Picture,
				Provider:        fc.Issuer,
				ProviderSubject: fc.Subject,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			return tx.Create(&u).Error
		default:
			return err
		}
	})
	if err != nil {
		logging.Auth().Error().Err(err).Str("provider", fc.Issuer).Msg("federated sign in failed")
		return Result{}, apperr.NewStoreError("federated sign in", err)
	}

	return s.signedIn(sess, u, "federated sign in")
}

func (s *Service) signedIn(sess *Session, u User, op string) (Result, error) {
	token, err := s.JWT.Sign(u)
	if err != nil {
		return Result{}, apperr.NewAuthError(op, err)
	}
	if sess != nil {
		sess.Set(u.Principal())
	}
	logging.Auth().Info().Str("user_id", u.ID).Str("op", op).Msg("signed in")
	return Result{User: u, Token: token}, nil
}

// SignOut revokes the token described by claims and clears the session.
func (s *Service) SignOut(ctx context.Context, sess *Session, claims *Claims) error {
	if claims != nil && claims.ID != "" {
		exp := s.now()
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time.UTC()
		}
		rt := RevokedToken{JTI: claims.ID, UserID: claims.Subject, ExpiresAt: exp, CreatedAt: s.now()}
		if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rt).Error; err != nil {
			logging.Auth().Error().Err(err).Str("jti", claims.ID).Msg("revoke token failed")
			return apperr.NewAuthError("sign out", err)
		}
	}
	if sess != nil {
		sess.Set(nil)
	}
	return nil
}

func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&RevokedToken{}).Where("jti = ?", jti).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// SessionFor builds a request session for the user named by claims.
func (s *Service) SessionFor(ctx context.Context, claims *Claims) (*Session, error) {
	if claims == nil {
		return NewSession(nil), nil
	}
	var u User
	if err := s.DB.WithContext(ctx).Where("id = ?", claims.Subject).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewAuthError("session", ErrUserNotFound)
		}
		return nil, apperr.NewStoreError("session", err)
	}
	return NewSession(u.Principal()), nil
}

// ResetPassword starts a reset for email. Unknown addresses succeed
// silently so the endpoint cannot be used to discover accounts.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !emailRe.MatchString(email) {
		return apperr.NewValidationError(map[string]string{"email": "email is invalid"})
	}

	var u User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logging.Auth().Debug().Msg("reset requested for unknown email")
			return nil
		}
		return apperr.NewStoreError("reset password", err)
	}

	token, err := newResetToken()
	if err != nil {
		return apperr.NewAuthError("reset password", err)
	}
	ttl := s.ResetTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := s.now()
	reset := PasswordReset{
		UserID:    u.ID,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.DB.WithContext(ctx).Create(&reset).Error; err != nil {
		logging.Auth().Error().Err(err).Str("user_id", u.ID).Msg("store reset token failed")
		return apperr.NewStoreError("reset password", err)
	}

	if s.Resets != nil {
		if err := s.Resets.EnqueuePasswordReset(ctx, u.ID, u.Email, token); err != nil {
			logging.Auth().Error().Err(err).Str("user_id", u.ID).Msg("enqueue reset failed")
			return apperr.NewStoreError("reset password", err)
		}
	}
	return nil
}

// ConfirmPasswordReset consumes token and sets a new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, password, confirm string) error {
	fields := map[string]string{}
	if len(password) < PasswordMinLen {
		fields["password"] = "password must be at least 6 characters"
	}
	if confirm != password {
		fields["confirmPassword"] = "passwords do not match"
	}
	if len(fields) > 0 {
		return apperr.NewValidationError(fields)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return apperr.NewAuthError("confirm reset", err)
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset PasswordReset
		err := tx.Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hashToken(token), now).
			First(&reset).Error
		if err != nil {
			return err
		}
		res := tx.Model(&PasswordReset{}).
			Where("id = ? AND used_at IS NULL", reset.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&User{}).Where("id = ?", reset.UserID).
			Updates(map[string]any{"password_hash": hash, "updated_at": now}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NewAuthError("confirm reset", ErrInvalidToken)
	}
	if err != nil {
		return apperr.NewStoreError("confirm reset", err)
	}
	return nil
}

func (s *Service) CurrentUser(ctx context.Context, sess *Session) (User, error) {
	p := sess.Current()
	if p == nil {
		return User{}, apperr.ErrNotAuthenticated
	}
	var u User
	if err := s.DB.WithContext(ctx).Where("id = ?", p.ID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, apperr.NewAuthError("current user", ErrUserNotFound)
		}
		return User{}, apperr.NewStoreError("current user", err)
	}
	return u, nil
}

// UpdateProfile changes the display name and/or photo and republishes the
// principal to the session.
func (s *Service) UpdateProfile(ctx context.Context, sess *Session, in ProfileInput) (User, error) {
	p := sess.Current()
	if p == nil {
		return User{}, apperr.ErrNotAuthenticated
	}

	updates := map[string]any{"updated_at": s.now()}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if utf8.RuneCountInString(name) < DisplayNameMinLen {
			return User{}, apperr.NewValidationError(map[string]string{
				"displayName": "display name must be at least 2 characters",
			})
		}
		updates["display_name"] = name
	}
	if in.PhotoURL != nil {
		updates["photo_url"] = strings.TrimSpace(*in.PhotoURL)
	}

	res := s.DB.WithContext(ctx).Model(&User{}).Where("id = ?", p.ID).Updates(updates)
	if res.Error != nil {
		return User{}, apperr.NewStoreError("update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return User{}, apperr.NewAuthError("update profile", ErrUserNotFound)
	}

	u, err := s.CurrentUser(ctx, sess)
	if err != nil {
		return User{}, err
	}
	sess.Set(u.Principal())
	return u, nil
}

// PurgeExpired drops revocations and reset tokens past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	r1 := s.DB.WithContext(ctx).Where("expires_at < ?", now).Delete(&RevokedToken{})
	if r1.Error != nil {
		return 0, r1.Error
	}
	r2 := s.DB.WithContext(ctx).Where("expires_at < ? OR used_at IS NOT NULL", now).Delete(&PasswordReset{})
	if r2.Error != nil {
		return r1.RowsAffected, r2.Error
	}
	return r1.RowsAffected + r2.RowsAffected, nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
