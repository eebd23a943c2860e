package middleware

import "errors"

// ErrUnauthorized is returned for admin-only commands from users not on the allow-list.
var ErrUnauthorized = errors.New("unauthorized")

// AllowList is the static set of user ids allowed to run admin commands.
type AllowList map[int64]struct{}

func NewAllowList(ids []int64) AllowList {
	list := make(AllowList, len(ids))
	for _, id := range ids {
		list[id] = struct{}{}
	}
	return list
}

// Authorize returns ErrUnauthorized unless userID is on the list.
func (a AllowList) Authorize(userID int64) error {
	if _, ok := a[userID]; !ok {
		return ErrUnauthorized
	}
	return nil
}
