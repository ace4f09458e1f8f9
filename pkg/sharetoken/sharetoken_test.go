package sharetoken

import "testing"

func TestNewTokensAreUniqueAndURLSafe(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := New()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(token) < 40 {
			t.Fatalf("token suspiciously short: %q", token)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %q", token)
		}
		seen[token] = true

		for _, r := range token {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			default:
				t.Fatalf("token contains non-URL-safe rune %q", r)
			}
		}
	}
}

func TestMatches(t *testing.T) {
	token, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !Matches(token, token) {
		t.Fatal("identical tokens must match")
	}
	if Matches(token, token+"x") {
		t.Fatal("different tokens must not match")
	}
	if Matches("", token) || Matches(token, "") {
		t.Fatal("empty tokens never match")
	}
}
