package service

import (
	"errors"
	"testing"

	"github.com/lujainibrahim/dyad-study/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACCodeIssuer_KnownValues(t *testing.T) {
	issuer := NewHMACCodeIssuer("test-secret", "CHAT-", 8)

	assert.Equal(t, "CHAT-69B5DA5B", issuer.Issue("p1", "pair_1"))
	assert.Equal(t, "CHAT-5FD67AFB", issuer.Issue("p2", "pair_1"))

	long := NewHMACCodeIssuer("test-secret", "", 12)
	assert.Equal(t, "6330D3B87602", long.Issue("p1", "pair_2"))
}

func TestHMACCodeIssuer_Deterministic(t *testing.T) {
	issuer := NewHMACCodeIssuer("secret", "CHAT-", 8)

	assert.Equal(t, issuer.Issue("p1", "pair_1"), issuer.Issue("p1", "pair_1"))
	assert.NotEqual(t, issuer.Issue("p1", "pair_1"), issuer.Issue("p1", "pair_2"))
	assert.NotEqual(t, issuer.Issue("ab", "c"), issuer.Issue("a", "bc"))

	other := NewHMACCodeIssuer("other-secret", "CHAT-", 8)
	assert.NotEqual(t, issuer.Issue("p1", "pair_1"), other.Issue("p1", "pair_1"))
}

func TestHMACCodeIssuer_LengthFallback(t *testing.T) {
	issuer := NewHMACCodeIssuer("secret", "X-", 0)
	assert.Len(t, issuer.Issue("p1", "pair_1"), len("X-")+8)

	issuer = NewHMACCodeIssuer("secret", "X-", 100)
	assert.Len(t, issuer.Issue("p1", "pair_1"), len("X-")+8)
}

func TestFixedCodeIssuer(t *testing.T) {
	issuer := NewFixedCodeIssuer("C1A2B3")

	assert.Equal(t, "C1A2B3", issuer.Issue("p1", "pair_1"))
	assert.Equal(t, "C1A2B3", issuer.Issue("p2", "pair_9"))
}

func TestNewCompletionCodeIssuer(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr error
		want    string
	}{
		{
			name: "hmac",
			cfg:  config.Config{CodeStrategy: config.CodeStrategyHMAC, CodeSecret: "test-secret", CodePrefix: "CHAT-", CodeLength: 8},
			want: "CHAT-69B5DA5B",
		},
		{
			name: "fixed",
			cfg:  config.Config{CodeStrategy: config.CodeStrategyFixed, FixedCode: "STATIC"},
			want: "STATIC",
		},
		{
			name:    "hmac without secret",
			cfg:     config.Config{CodeStrategy: config.CodeStrategyHMAC},
			wantErr: ErrMissingField,
		},
		{
			name:    "fixed without code",
			cfg:     config.Config{CodeStrategy: config.CodeStrategyFixed},
			wantErr: ErrMissingField,
		},
		{
			name:    "unknown strategy",
			cfg:     config.Config{CodeStrategy: "random"},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer, err := NewCompletionCodeIssuer(&tt.cfg)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, issuer.Issue("p1", "pair_1"))
		})
	}
}
