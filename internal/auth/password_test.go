package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("expected hash to differ from plaintext")
	}

	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatal("expected matching password to verify")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Fatal("expected mismatched password to fail")
	}
	if VerifyPassword("", "anything") {
		t.Fatal("expected empty hash to fail verification")
	}
}
