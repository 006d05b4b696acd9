package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lujainibrahim/dyad-study/internal/config"
)

// CompletionCodeIssuer 참가자/페어별 완료 코드 발급
type CompletionCodeIssuer interface {
	Issue(participantID, pairID string) string
}

// HMACCodeIssuer HMAC-SHA256(secret, participantID|pairID) 앞부분을 대문자 hex로 사용
type HMACCodeIssuer struct {
	secret []byte
	prefix string
	length int
}

func NewHMACCodeIssuer(secret, prefix string, length int) *HMACCodeIssuer {
	if length <= 0 || length > sha256.Size*2 {
		length = 8
	}
	return &HMACCodeIssuer{
		secret: []byte(secret),
		prefix: prefix,
		length: length,
	}
}

func (i *HMACCodeIssuer) Issue(participantID, pairID string) string {
	mac := hmac.New(sha256.New, i.secret)
	// 구분자로 ("ab","c")와 ("a","bc") 충돌 방지
	mac.Write([]byte(participantID))
	mac.Write([]byte{0})
	mac.Write([]byte(pairID))
	digest := hex.EncodeToString(mac.Sum(nil))
	return i.prefix + strings.ToUpper(digest[:i.length])
}

// FixedCodeIssuer 모든 세션에 같은 코드
type FixedCodeIssuer struct {
	code string
}

func NewFixedCodeIssuer(code string) *FixedCodeIssuer {
	return &FixedCodeIssuer{code: code}
}

func (i *FixedCodeIssuer) Issue(_, _ string) string {
	return i.code
}

// NewCompletionCodeIssuer 배포 단위로 한 가지 전략만 선택
func NewCompletionCodeIssuer(cfg *config.Config) (CompletionCodeIssuer, error) {
	switch cfg.CodeStrategy {
	case config.CodeStrategyHMAC:
		if cfg.CodeSecret == "" {
			return nil, fmt.Errorf("%w: completion secret", ErrMissingField)
		}
		return NewHMACCodeIssuer(cfg.CodeSecret, cfg.CodePrefix, cfg.CodeLength), nil
	case config.CodeStrategyFixed:
		if cfg.FixedCode == "" {
			return nil, fmt.Errorf("%w: fixed completion code", ErrMissingField)
		}
		return NewFixedCodeIssuer(cfg.FixedCode), nil
	default:
		return nil, fmt.Errorf("%w: completion code strategy %q", ErrInvalidInput, cfg.CodeStrategy)
	}
}
