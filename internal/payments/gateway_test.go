package payments_test

import (
	"testing"

	"github.com/hookline/tow-bookings/internal/payments"
)

func TestIntentIDFromSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		wantID string
		wantOK bool
	}{
		{"well formed", "pi_3OaBcDeF_secret_k9XyZ", "pi_3OaBcDeF", true},
		{"missing secret suffix", "pi_3OaBcDeF", "", false},
		{"not an intent id", "seti_1AbC_secret_xyz", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := payments.IntentIDFromSecret(tt.secret)
			if ok != tt.wantOK {
				t.Fatalf("IntentIDFromSecret(%q) ok = %v, want %v", tt.secret, ok, tt.wantOK)
			}
			if id != tt.wantID {
				t.Errorf("IntentIDFromSecret(%q) id = %q, want %q", tt.secret, id, tt.wantID)
			}
		})
	}
}
