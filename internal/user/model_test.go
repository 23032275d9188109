package user

import (
	"encoding/json"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"A@X.com", "a@x.com"},
		{"  Ann@Test.COM  ", "ann@test.com"},
		{"ann@test.com", "ann@test.com"},
	}

	for _, tc := range cases {
		if got := NormalizeEmail(tc.in); got != tc.want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPublicUserExcludesPassword(t *testing.T) {
	u := &User{
		ID:        bson.NewObjectID(),
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     "ann@test.com",
		Password:  "$2a$10$dummyhashvalue",
	}

	payload, err := json.Marshal(u.Public())
	if err != nil {
		t.Fatalf("failed to marshal public user: %v", err)
	}

	body := string(payload)
	if strings.Contains(body, "password") || strings.Contains(body, u.Password) {
		t.Fatalf("public view leaked password material: %s", body)
	}
	if !strings.Contains(body, u.ID.Hex()) {
		t.Fatalf("public view missing id: %s", body)
	}
}
