package logger

import (
	"regexp"

	"go.uber.org/zap"
)

var (
	rePassword    = regexp.MustCompile(`(?i)(password[=:]\s*)([^\s;&,]+)`)
	reBearer      = regexp.MustCompile(`(?i)(bearer\s+|oauth\s+)([A-Za-z0-9!._-]+)`)
	reSessionTag  = regexp.MustCompile(`(?i)(<sessionId>)([^<]+)(</sessionId>)`)
	rePasswordTag = regexp.MustCompile(`(?i)(<n1:password>|<password>)([^<]+)(</n1:password>|</password>)`)
	reTokenParam  = regexp.MustCompile(`(?i)((?:security_token|access_token|client_secret|sid)[=:]\s*)([^\s;&,]+)`)
	reURLUserinfo = regexp.MustCompile(`(://)([^:/@\s]+):([^@/\s]+)(@)`)
)

// Mask replaces credentials and session ids in s with "***".
func Mask(s string) string {
	out := s
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reBearer.ReplaceAllString(out, "$1***")
	out = reSessionTag.ReplaceAllString(out, "$1***$3")
	out = rePasswordTag.ReplaceAllString(out, "$1***$3")
	out = reTokenParam.ReplaceAllString(out, "$1***")
	out = reURLUserinfo.ReplaceAllString(out, "$1*:*$4")
	return out
}

// MaskedError returns a zap field carrying err's message with secrets masked.
func MaskedError(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", Mask(err.Error()))
}
