package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Error("expected wrong password to fail")
	}
	if CheckPassword("not-a-hash", "correct horse") {
		t.Error("expected malformed hash to fail")
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword(16)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GeneratePassword(16)
	if len(a) != 16 {
		t.Errorf("expected 16 chars, got %d", len(a))
	}
	if a == b {
		t.Error("expected different passwords")
	}
}
