package models

import "regexp"

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidProjectID reports whether id is an acceptable project identifier.
func ValidProjectID(id string) bool {
	return projectIDPattern.MatchString(id)
}
