package challenge

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testChallenge() Challenge {
	return Challenge{
		RandomNonce:         "a1b2c3d4",
		CreatedTime:         1_700_000_000_000,
		ExpirationTime:      1_700_000_030_000,
		WebsiteID:           "example.com",
		ChallengeParam:      TargetForDifficulty(1000),
		RecommendedAttempts: 2000,
	}
}

func TestChallenge_IsExpired(t *testing.T) {
	c := testChallenge()

	tests := []struct {
		name string
		now  int64
		want bool
	}{
		{"before expiration", c.ExpirationTime - 1, false},
		{"at expiration", c.ExpirationTime, false},
		{"after expiration", c.ExpirationTime + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsExpired(time.UnixMilli(tt.now)); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChallenge_Difficulty(t *testing.T) {
	c := testChallenge()
	if got := c.Difficulty(); got != 1000 {
		t.Errorf("Difficulty() = %d, want 1000", got)
	}
}

func TestChallenge_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Challenge)
		wantErr string
	}{
		{"valid", func(*Challenge) {}, ""},
		{"missing website", func(c *Challenge) { c.WebsiteID = "" }, "website id"},
		{"zero expiration", func(c *Challenge) { c.ExpirationTime = 0 }, "expiration"},
		{"empty nonce", func(c *Challenge) { c.RandomNonce = "" }, "random nonce"},
		{"non-hex nonce", func(c *Challenge) { c.RandomNonce = "zz" }, "not hex"},
		{"bad target", func(c *Challenge) { c.ChallengeParam = "abc" }, "even length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testChallenge()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    byte // last byte
		wantErr bool
	}{
		{"full width", strings.Repeat("00", 31) + "ff", 0xff, false},
		{"left padded", "0102", 0x02, false},
		{"empty", "", 0, true},
		{"odd length", "abc", 0, true},
		{"too long", strings.Repeat("00", 33), 0, true},
		{"not hex", "zz", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got[31] != tt.want {
				t.Errorf("ParseTarget() last byte = %x, want %x", got[31], tt.want)
			}
		})
	}

	padded, _ := ParseTarget("0102")
	if padded[30] != 0x01 || padded[0] != 0 {
		t.Errorf("Expected left padding, got %x", padded)
	}
}

func TestTargetForDifficulty(t *testing.T) {
	if got := TargetForDifficulty(1); got != strings.Repeat("ff", 32) {
		t.Errorf("TargetForDifficulty(1) = %s", got)
	}
	if got := TargetForDifficulty(256); got != "00"+strings.Repeat("ff", 31) {
		t.Errorf("TargetForDifficulty(256) = %s", got)
	}
	if got := TargetForDifficulty(65536); got != "0000"+strings.Repeat("ff", 30) {
		t.Errorf("TargetForDifficulty(65536) = %s", got)
	}
}

func TestSolution_HeaderRoundTrip(t *testing.T) {
	sol := Solution{SolvedChallenge: testChallenge(), Solution: 402}

	header, err := sol.ToHeader()
	if err != nil {
		t.Fatalf("ToHeader() error: %v", err)
	}
	if strings.ContainsAny(header, "+/") {
		t.Errorf("Header is not URL safe: %s", header)
	}

	decoded, err := SolutionFromHeader(header)
	if err != nil {
		t.Fatalf("SolutionFromHeader() error: %v", err)
	}
	if decoded.Solution != 402 || decoded.SolvedChallenge != sol.SolvedChallenge {
		t.Errorf("Round trip mismatch: %+v", decoded)
	}

	if _, err := SolutionFromHeader("!!!"); err == nil {
		t.Error("Expected error for invalid header")
	}
}

func TestChallenge_JSONFieldNames(t *testing.T) {
	raw := `{"random_nonce":"ab","created_time":1,"expiration_time":2,"website_id":"w",
		"challenge_param":"ff","recommended_attempts":10,"public_key":"pk","challenge_signature":"sig"}`

	var c Challenge
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if c.WebsiteID != "w" || c.RecommendedAttempts != 10 || c.ChallengeSignature != "sig" {
		t.Errorf("Unexpected decode: %+v", c)
	}
}

func TestToken_IsValid(t *testing.T) {
	tok := Token{ValidFor: 1_000}

	if !tok.IsValid(time.UnixMilli(999)) {
		t.Error("Expected token valid before ValidFor")
	}
	if tok.IsValid(time.UnixMilli(1_000)) {
		t.Error("Expected token invalid at ValidFor")
	}
}

func TestNewRequest(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	req := NewRequest("https://example.com/protected", now)
	if req.Timestamp != 1_700_000_000_123 || req.Endpoint != "https://example.com/protected" {
		t.Errorf("NewRequest() = %+v", req)
	}
}
