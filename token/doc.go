// Package token issues and verifies the HS256-signed access and refresh
// tokens of the authentication engine. A refresh token is distinguished by a
// "type":"refresh" claim; access tokens carry no type claim. Verification is
// fail-closed: anything that cannot be positively validated is invalid.
package token
