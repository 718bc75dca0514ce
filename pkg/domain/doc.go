/*
Package domain contains the core domain models of the Virtuoso engine.

It defines the scripted entities (Compositions and their Stanzas), the playback
report (Performances and StanzaResults) and the connection vocabulary shared by
the Conductor and its adapters. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Composition: A saved, ordered script of protocol actions across named accounts.
  - Stanza: One scripted action (connect, disconnect, send, cue, assert).
  - Performance: The recorded outcome of playing a Composition.
  - ConnectionEvent: An inbound message or status transition for one account.
*/
package domain
