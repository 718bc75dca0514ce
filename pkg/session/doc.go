/*
Package session owns the per-account connection sessions of a ConnectionManager.

A Registry is injected into each manager implementation; it replaces
process-wide maps keyed by account id. Every Session tracks its connection
status and fans inbound events out to any number of subscribers, so the
Conductor can subscribe and unsubscribe without clobbering other listeners
(for instance the Composer observing the same account).

Subscriptions buffer without bound: a slow consumer never loses an inbound
message, and events published before a consumer starts waiting are still
delivered in order.
*/
package session
