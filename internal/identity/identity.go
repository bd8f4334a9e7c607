package identity

import "strings"

// Canonicalize turns an email address into a key that is safe to use as
// a document path segment: every '.' and '@' becomes '-'.
//
// Known weakness, kept for storage compatibility: addresses that differ
// only in the substituted characters collide ("a.b@c" and "a@b.c" both
// map to "a-b-c"). Registration refuses an already-taken key, so a
// collision surfaces as a duplicate-account error rather than silent
// data sharing.
func Canonicalize(email string) string {
	safe := strings.ReplaceAll(email, ".", "-")
	return strings.ReplaceAll(safe, "@", "-")
}

// ProfilePictureFileName is the blob file name convention for a user's
// profile picture.
func ProfilePictureFileName(key string) string {
	return key + "_profile_picture.png"
}
