package pasetotoken

import (
	"errors"
	"fmt"
)

var (
	ErrConfig       = errors.New("paseto config")
	ErrInvalidToken = errors.New("invalid token")
)

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...)
}
