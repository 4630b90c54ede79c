package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-.]*$`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidateUsername validates a DataHub username
func ValidateUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// RevisionNumber extracts the numeric revision from a revision id such as
// "owner/dataset/7". The last path segment must be a non-negative integer.
func RevisionNumber(id string) (int, bool) {
	id = strings.TrimRight(strings.TrimSpace(id), "/")
	if id == "" {
		return 0, false
	}

	last := id[strings.LastIndex(id, "/")+1:]
	n, err := strconv.Atoi(last)
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}
