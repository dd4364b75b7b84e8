// Package discord is a small client for the parts of the Discord REST API
// that an OAuth2 application reads on behalf of a signed-in user, together
// with the User, Guild and Member records decoded from it.
package discord
