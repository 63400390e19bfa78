package identity

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestUserIDReadsSubjectClaim(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "alice", "exp": 4102444800})
	if got := UserID(token); got != "alice" {
		t.Fatalf("UserID = %q", got)
	}
}

func TestUserIDDoesNotVerifySignature(t *testing.T) {
	// The client only reads its own name out of the token; a signature from
	// an unknown key must not get in the way.
	token := signedToken(t, jwt.MapClaims{"sub": "bob"})
	if got := UserID(token); got != "bob" {
		t.Fatalf("UserID = %q", got)
	}
}

func TestUserIDOnBadInput(t *testing.T) {
	for name, token := range map[string]string{
		"empty":      "",
		"garbage":    "not-a-jwt",
		"no subject": signedToken(t, jwt.MapClaims{"name": "alice"}),
	} {
		if got := UserID(token); got != "" {
			t.Errorf("%s: UserID = %q, want empty", name, got)
		}
	}
}

func TestResolverFollowsTokenSource(t *testing.T) {
	current := signedToken(t, jwt.MapClaims{"sub": "alice"})
	r := NewResolver(func() string { return current })

	if got := r.UserID(); got != "alice" {
		t.Fatalf("UserID = %q", got)
	}

	current = ""
	if got := r.UserID(); got != "" {
		t.Fatalf("UserID after logout = %q", got)
	}
}
