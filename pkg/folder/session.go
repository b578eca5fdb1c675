package folder

import "time"

// Session identifies the actor of an operation.
type Session struct {
	UserID    int
	ContextID int
	Groups    []int

	// Locale is a BCP 47 tag such as "en-US" or "de".
	Locale string

	// TimeZone is an IANA zone name such as "Europe/Berlin".
	TimeZone string

	// FullSharedFolderAccess is the capability to see folders shared by
	// other users.
	FullSharedFolderAccess bool
}

// InGroup reports whether the actor is member of group. Group 0 contains
// every user.
func (s *Session) InGroup(group int) bool {
	if group == 0 {
		return true
	}
	for _, g := range s.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Location returns the actor's time zone, falling back to UTC.
func (s *Session) Location() *time.Location {
	if s == nil || s.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
