package auth

import (
	"context"
	"testing"
	"time"

	"planning/internal/apperr"
	"planning/internal/dbtest"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

type sentReset struct {
	UserID, Email, Token string
}

type fakeResets struct {
	sent []sentReset
	err  error
}

func (f *fakeResets) EnqueuePasswordReset(_ context.Context, userID, email, token string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentReset{userID, email, token})
	return nil
}

const federatedSecret = "broker-secret"

func newService(t *testing.T) (*Service, *fakeResets) {
	t.Helper()
	gdb := dbtest.Open(t, &User{}, &RevokedToken{}, &PasswordReset{})
	resets := &fakeResets{}
	return &Service{
		DB:        gdb,
		JWT:       NewJWT("test-secret", time.Hour),
		Federated: NewFederatedVerifier(federatedSecret),
		Resets:    resets,
		ResetTTL:  time.Hour,
	}, resets
}

func signUp(t *testing.T, svc *Service, email string) Result {
	t.Helper()
	res, err := svc.SignUp(context.Background(), NewSession(nil), SignUpInput{
		DisplayName:     "Alice",
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	return res
}

func TestValidateSignUp(t *testing.T) {
	err := ValidateSignUp(SignUpInput{DisplayName: " A ", Email: "nope", Password: "12345", ConfirmPassword: "x"})
	require.Error(t, err)
	assert.True(t, errorsIsKind(err, apperr.KindValidation))

	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "displayName")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "confirmPassword")

	assert.NoError(t, ValidateSignUp(SignUpInput{DisplayName: "Al", Email: "al@example.com", Password: "123456", ConfirmPassword: "123456"}))
}

func errorsIsKind(err error, k apperr.Kind) bool {
	return apperr.KindOf(err) == k
}

func TestSignUp_SetsSessionAndToken(t *testing.T) {
	svc, _ := newService(t)
	sess := NewSession(nil)

	var seen []*Principal
	sess.Subscribe(func(p *Principal) { seen = append(seen, p) })

	res, err := svc.SignUp(context.Background(), sess, SignUpInput{
		DisplayName:     "  Alice ",
		Email:           " Alice@Example.com ",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.User.ID)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, "Alice", res.User.DisplayName)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	require.NotNil(t, sess.Current())
	assert.Equal(t, res.User.ID, sess.Current().ID)
	require.Len(t, seen, 1)
	assert.Equal(t, "Alice", seen[0].DisplayName)

	claims, err := svc.JWT.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.Subject)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	signUp(t, svc, "alice@example.com")

	_, err := svc.SignUp(context.Background(), NewSession(nil), SignUpInput{
		DisplayName: "Other", Email: "ALICE@example.com", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignIn(t *testing.T) {
	svc, _ := newService(t)
	u := signUp(t, svc, "alice@example.com").User
	ctx := context.Background()

	sess := NewSession(nil)
	res, err := svc.SignIn(ctx, sess, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.Equal(t, u.ID, sess.Current().ID)

	other := NewSession(nil)
	_, err = svc.SignIn(ctx, other, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, other.Current())

	_, err = svc.SignIn(ctx, other, "bob@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, other, "", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func federatedToken(t *testing.T, secret string, claims FederatedClaims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestSignInWithFederatedProvider(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tok := federatedToken(t, federatedSecret, FederatedClaims{
		Email: "Carol@Example.com",
		Name:  "Carol",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  "google",
			Subject: "g-123",
		},
	})

	sess := NewSession(nil)
	first, err := svc.SignInWithFederatedProvider(ctx, sess, tok)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", first.User.Email)
	assert.Equal(t, "google", first.User.Provider)
	assert.Empty(t, first.User.PasswordHash)
	assert.Equal(t, first.User.ID, sess.Current().ID)

	again, err := svc.SignInWithFederatedProvider(ctx, NewSession(nil), tok)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, again.User.ID)

	// federated-only accounts have no password
	_, err = svc.SignIn(ctx, NewSession(nil), "carol@example.com", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignInWithFederatedProvider_LinksByEmail(t *testing.T) {
	svc, _ := newService(t)
	existing := signUp(t, svc, "alice@example.com").User

	tok := federatedToken(t, federatedSecret, FederatedClaims{
		Email: "alice@example.com",
		Name:  "Alice G",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  "google",
			Subject: "g-alice",
		},
	})

	res, err := svc.SignInWithFederatedProvider(context.Background(), NewSession(nil), tok)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.User.ID)
	assert.Equal(t, "google", res.User.Provider)
	assert.Equal(t, "g-alice", res.User.ProviderSubject)
	// the chosen display name is kept
	assert.Equal(t, "Alice", res.User.DisplayName)
}

func TestSignInWithFederatedProvider_Rejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	forged := federatedToken(t, "wrong-secret", FederatedClaims{
		Email:            "eve@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "google", Subject: "x"},
	})
	_, err := svc.SignInWithFederatedProvider(ctx, NewSession(nil), forged)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject := federatedToken(t, federatedSecret, FederatedClaims{
		Email:            "eve@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "google"},
	})
	_, err = svc.SignInWithFederatedProvider(ctx, NewSession(nil), noSubject)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.Federated = NewFederatedVerifier("")
	_, err = svc.SignInWithFederatedProvider(ctx, NewSession(nil), noSubject)
	assert.ErrorIs(t, err, ErrFederatedDisabled)
}

func TestSignOut_RevokesToken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	res := signUp(t, svc, "alice@example.com")

	claims, err := svc.JWT.Verify(res.Token)
	require.NoError(t, err)

	sess, err := svc.SessionFor(ctx, claims)
	require.NoError(t, err)
	require.NotNil(t, sess.Current())

	revoked, err := svc.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.SignOut(ctx, sess, claims))
	assert.Nil(t, sess.Current())

	revoked, err = svc.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	// signing out twice is harmless
	require.NoError(t, svc.SignOut(ctx, NewSession(nil), claims))
}

func TestResetPassword(t *testing.T) {
	svc, resets := newService(t)
	ctx := context.Background()
	u := signUp(t, svc, "alice@example.com").User

	require.NoError(t, svc.ResetPassword(ctx, "nobody@example.com"))
	assert.Empty(t, resets.sent)

	err := svc.ResetPassword(ctx, "not-an-email")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, svc.ResetPassword(ctx, "Alice@example.com"))
	require.Len(t, resets.sent, 1)
	sent := resets.sent[0]
	assert.Equal(t, u.ID, sent.UserID)
	assert.Equal(t, "alice@example.com", sent.Email)

	var stored PasswordReset
	require.NoError(t, svc.DB.First(&stored).Error)
	assert.NotEqual(t, sent.Token, stored.TokenHash)
	assert.Equal(t, hashToken(sent.Token), stored.TokenHash)

	err = svc.ConfirmPasswordReset(ctx, sent.Token, "newpass", "different")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, svc.ConfirmPasswordReset(ctx, sent.Token, "newpass", "newpass"))

	_, err = svc.SignIn(ctx, NewSession(nil), "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, NewSession(nil), "alice@example.com", "newpass")
	require.NoError(t, err)

	// single use
	err = svc.ConfirmPasswordReset(ctx, sent.Token, "another", "another")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestConfirmPasswordReset_Expired(t *testing.T) {
	svc, resets := newService(t)
	ctx := context.Background()
	signUp(t, svc, "alice@example.com")

	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return base }
	require.NoError(t, svc.ResetPassword(ctx, "alice@example.com"))
	require.Len(t, resets.sent, 1)

	svc.Now = func() time.Time { return base.Add(2 * time.Hour) }
	err := svc.ConfirmPasswordReset(ctx, resets.sent[0].Token, "newpass", "newpass")
	assert.ErrorIs(t, err, ErrInvalidToken)

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, NewSession(nil), ProfileInput{})
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	sess := NewSession(nil)
	_, err = svc.SignUp(ctx, sess, SignUpInput{DisplayName: "Alice", Email: "alice@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)

	short := "A"
	_, err = svc.UpdateProfile(ctx, sess, ProfileInput{DisplayName: &short})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	name, photo := "Alice Liddell", "https://example.com/a.png"
	u, err := svc.UpdateProfile(ctx, sess, ProfileInput{DisplayName: &name, PhotoURL: &photo})
	require.NoError(t, err)
	assert.Equal(t, name, u.DisplayName)
	assert.Equal(t, photo, u.PhotoURL)
	assert.Equal(t, name, sess.Current().DisplayName)

	cur, err := svc.CurrentUser(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, name, cur.DisplayName)
}

func TestPurgeExpired_Revocations(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	require.NoError(t, svc.DB.Create(&RevokedToken{JTI: "old", UserID: "u", ExpiresAt: now.Add(-time.Minute), CreatedAt: now}).Error)
	require.NoError(t, svc.DB.Create(&RevokedToken{JTI: "live", UserID: "u", ExpiresAt: now.Add(time.Hour), CreatedAt: now}).Error)

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, err := svc.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, gone)
}
