package party

import (
	"errors"

	"github.com/samber/oops"
)

var (
	ErrNotInParty          = errors.New("party: not in a party session")
	ErrInvalidTarget       = errors.New("party: invalid target user")
	ErrInvalidContext      = errors.New("party: local player context unresolved")
	ErrChainInterrupted    = errors.New("party: leave step of chained operation failed")
	ErrCreateFailed        = errors.New("party: create party failed")
	ErrNoSessionInterface  = errors.New("party: session backend unavailable")
	ErrOperationInProgress = errors.New("party: another party operation is in progress")
	ErrClosed              = errors.New("party: session closed")
)

func notInParty(localUser int) error {
	return oops.Code("PARTY_NOT_IN_SESSION").With("local_user", localUser).Wrap(ErrNotInParty)
}

func invalidTarget(localUser int, op string) error {
	return oops.Code("PARTY_INVALID_TARGET").With("local_user", localUser).With("op", op).Wrap(ErrInvalidTarget)
}

func invalidContext(localUser int, op string) error {
	return oops.Code("PARTY_INVALID_CONTEXT").With("local_user", localUser).With("op", op).Wrap(ErrInvalidContext)
}

func noBackend(op string) error {
	return oops.Code("PARTY_NO_SESSION_INTERFACE").With("op", op).Wrap(ErrNoSessionInterface)
}

func inProgress(op, running string) error {
	return oops.Code("PARTY_OPERATION_IN_PROGRESS").With("op", op).With("running", running).Wrap(ErrOperationInProgress)
}

func chainInterrupted(op string, cause error) error {
	return oops.Code("PARTY_CHAIN_INTERRUPTED").With("op", op).Wrapf(errors.Join(ErrChainInterrupted, cause), "%s: leave current party", op)
}
