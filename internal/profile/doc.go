// Package profile caches the signed-in visitor's Discord user record and
// guild list inside their session for a short window, so that pages built
// from several lookups cost one upstream call per resource.
//
// Entries are checked on read and an expired entry is treated exactly like
// a missing one. Failed lookups never write to the session. Member details
// are always fetched fresh, but only for guilds the cached guild list says
// the visitor belongs to.
package profile
