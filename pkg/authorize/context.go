package authorize

import (
	"context"
	"errors"

	"github.com/Alijeyrad/karsaz_backend/pkg/reqctx"
)

var ErrNoSubjectInContext = errors.New("no subject found in context")

// SubjectFromContext returns the authenticated caller stored by the auth
// middleware as a casbin subject.
func SubjectFromContext(ctx context.Context) (GroupSubject, error) {
	uid, ok := reqctx.UserIDFromContext(ctx)
	if !ok {
		return "", ErrNoSubjectInContext
	}
	return GroupSubject(uid.String()), nil
}

// Allowed checks the caller on ctx against a sys-domain permission. Whether
// the caller owns a particular appointment or payment is decided by the
// services, not here.
func Allowed(ctx context.Context, a IAuthorization, object Resource, action Action) error {
	subject, err := SubjectFromContext(ctx)
	if err != nil {
		return err
	}
	return a.MustEnforce(ctx, subject, DomainSys, object, action)
}
