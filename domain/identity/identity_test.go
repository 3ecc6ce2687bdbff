package identity_test

import (
	"strings"
	"testing"
	"time"

	"github.com/artpar/trustmeter/domain/identity"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"lower case", "0x5fbdb2315678afecb367f032d93f642f64180aa3", "0x5fbdb2315678afecb367f032d93f642f64180aa3", false},
		{"checksummed", "0x5FbDB2315678afecb367f032d93F642f64180aa3", "0x5fbdb2315678afecb367f032d93f642f64180aa3", false},
		{"whitespace", "  0x5FBDB2315678AFECB367F032D93F642F64180AA3 ", "0x5fbdb2315678afecb367f032d93f642f64180aa3", false},
		{"missing prefix", "5fbdb2315678afecb367f032d93f642f64180aa3", "", true},
		{"too short", "0x5fbdb2315678afecb367f032d93f642f64180a", "", true},
		{"not hex", "0xzzbdb2315678afecb367f032d93f642f64180aa3", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := identity.NormalizeAddress(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeAddress(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeAddress(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildChallenge(t *testing.T) {
	params := identity.ChallengeParams{
		Domain:   "localhost:3000",
		URI:      "http://localhost:3000",
		TermsURL: "https://localhost:3000/tos",
		ChainID:  31337,
		TTL:      24 * time.Hour,
	}
	issued := time.Date(2024, 3, 1, 10, 0, 0, 500, time.UTC)

	c := identity.BuildChallenge(params, "0x5fbdb2315678afecb367f032d93f642f64180aa3", "abc123", issued)

	want := strings.Join([]string{
		"localhost:3000 wants you to sign in with your Ethereum account:",
		"0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"",
		"I accept the Terms of Service: https://localhost:3000/tos",
		"",
		"URI: http://localhost:3000",
		"Version: 1",
		"Chain ID: 31337",
		"Nonce: abc123",
		"Issued At: 2024-03-01T10:00:00Z",
		"Expiration Time: 2024-03-02T10:00:00Z",
	}, "\n")

	if c.Message != want {
		t.Errorf("message mismatch:\n got: %q\nwant: %q", c.Message, want)
	}

	again := identity.BuildChallenge(params, "0x5FBDB2315678AFECB367F032D93F642F64180AA3", "abc123", issued.Add(200*time.Millisecond))
	if again.Message != c.Message {
		t.Error("challenge should be reproducible from nonce and issuance second")
	}
}

func TestChallenge_Expired(t *testing.T) {
	issued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := identity.BuildChallenge(identity.ChallengeParams{TTL: time.Hour}, "0x5fbdb2315678afecb367f032d93f642f64180aa3", "n", issued)

	if c.Expired(issued.Add(30 * time.Minute)) {
		t.Error("challenge should be valid inside TTL")
	}
	if !c.Expired(issued.Add(61 * time.Minute)) {
		t.Error("challenge should expire after TTL")
	}

	noTTL := identity.BuildChallenge(identity.ChallengeParams{}, "0x5fbdb2315678afecb367f032d93f642f64180aa3", "n", issued)
	if noTTL.Expired(issued.Add(1000 * time.Hour)) {
		t.Error("challenge without TTL never expires")
	}
	if strings.Contains(noTTL.Message, "Expiration Time") {
		t.Error("message without TTL should not carry an expiration line")
	}
}
