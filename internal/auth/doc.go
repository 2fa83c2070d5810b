// Package auth verifies admin credentials, issues and validates bearer
// tokens, and gates HTTP handlers on a valid token.
//
// There is a single credential class: any user in the users table may
// authenticate and any valid token may edit content.
package auth
