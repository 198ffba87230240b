package alias

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"strings"
)

// ErrUnknownUser is returned when a uid or user name does not resolve
var ErrUnknownUser = errors.New("unknown user")

// NoOwner means the guest device keeps its default ownership
const NoOwner = -1

// LookupUser resolves a numeric uid or a user name to a uid
func LookupUser(uidOrName string) (int, error) {
	uidOrName = strings.TrimSpace(uidOrName)
	if uidOrName == "" {
		return NoOwner, nil
	}

	var u *user.User
	var err error
	if _, convErr := strconv.ParseUint(uidOrName, 10, 32); convErr == nil {
		u, err = user.LookupId(uidOrName)
	} else {
		u, err = user.Lookup(uidOrName)
	}
	if err != nil {
		return NoOwner, fmt.Errorf("%w %q: %v", ErrUnknownUser, uidOrName, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return NoOwner, fmt.Errorf("%w %q: uid %q", ErrUnknownUser, uidOrName, u.Uid)
	}
	return uid, nil
}
