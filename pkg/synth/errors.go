package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind はプロバイダーエラーの分類です。リトライ方針はこの分類で決まります。
type ErrorKind string

const (
	// KindContentPolicy はプロンプトが拒否された状態です。再試行しても解決しません。
	KindContentPolicy ErrorKind = "content_policy"
	// KindRateLimit は流量超過です。バックオフ後に再試行できます。
	KindRateLimit ErrorKind = "rate_limit"
	// KindTransient は一時的な障害（タイムアウト・5xx等）です。再試行できます。
	KindTransient ErrorKind = "transient"
	// KindFatal は再試行しても解決しない恒久的な失敗です。
	KindFatal ErrorKind = "fatal"
)

// ProviderError は画像合成プロバイダー由来のエラーに分類を付与したものです。
type ProviderError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.cause }

// Retryable はバックオフ付きの再試行が意味を持つ分類かどうかを返します。
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindTransient
}

// AsProviderError は err の連鎖から ProviderError を取り出します。
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

// contentPolicyMarkers / rateLimitMarkers / transientMarkers は
// プロバイダーのエラーメッセージからの分類に使う語彙です。
var (
	contentPolicyMarkers = []string{"safety", "blocked", "content policy", "prohibited", "sexually", "violat"}
	rateLimitMarkers     = []string{"429", "rate limit", "quota", "resource has been exhausted", "resource exhausted", "too many requests"}
	transientMarkers     = []string{"timeout", "deadline", "unavailable", "internal error", "500", "502", "503", "connection reset", "connection refused", "eof"}
)

// Classify はプロバイダー呼び出しのエラーを ProviderError に分類します。
//すでに分類済みならそのまま返します。
func Classify(err error) *ProviderError {
	if err == nil {
		return nil
	}
	if pe, ok := AsProviderError(err); ok {
		return pe
	}

	kind := KindFatal
	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTransient
	case containsAny(msg, contentPolicyMarkers):
		kind = KindContentPolicy
	case containsAny(msg, rateLimitMarkers):
		kind = KindRateLimit
	case containsAny(msg, transientMarkers):
		kind = KindTransient
	}

	return &ProviderError{Kind: kind, Message: err.Error(), cause: err}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
