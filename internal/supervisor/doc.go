// Package supervisor keeps exactly one healthy gateway process available
// inside the sandbox.
//
// The supervisor is stateless: the sandbox's process table is the only
// authority on whether a gateway is running, and every operation re-derives
// its view from there. Independent callers may invoke Ensure and Restart
// concurrently; safety comes from re-locating immediately before acting,
// treating "already running and reachable" as success, and from kill and
// start both being idempotent-enough (kill errors are swallowed, a duplicate
// short-lived start converges because both callers wait for the same
// listening port).
package supervisor
