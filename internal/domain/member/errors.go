package member

import "errors"

var ErrMemberNotFound = errors.New("group member not found")
