/*
Package virtuoso records and plays scripted XMPP conversations.

A Composition is an ordered script of stanzas (connect, send, cue, assert,
disconnect), each bound to an account alias. Playing it produces a Performance:
one result per stanza plus an overall verdict.

# Concept

The Engine is the host-facing facade. It stores compositions, performances,
templates and accounts through pluggable backends (file, memory, Redis), and
plays compositions through a ConnectionManager. The manager is the only piece
that talks to XMPP: the loopback adapter simulates a server in-process, and the
bridge adapter hands commands to an outer transport process over HTTP.

During a performance each account runs on its own goroutine, in script order.
Accounts only wait on each other through cues: a cue blocks its account until a
matching inbound message arrives or its timeout expires.

# Usage

	package main

	import (
		"context"
		"log"
		"time"

		"github.com/aretw0/virtuoso"
		"github.com/aretw0/virtuoso/pkg/adapters/loopback"
		"github.com/aretw0/virtuoso/pkg/domain"
	)

	func main() {
		eng, err := virtuoso.New(loopback.New())
		if err != nil {
			log.Fatal(err)
		}

		alice := domain.AccountReference{Alias: "alice", JID: "alice@example.com"}
		comp := &domain.Composition{
			Name:     "ping",
			Accounts: []domain.AccountReference{alice},
			Stanzas: []domain.Stanza{
				{ID: "s1", Type: domain.StanzaConnect, AccountAlias: "alice", Data: domain.ConnectData{}},
				{ID: "s2", Type: domain.StanzaSend, AccountAlias: "alice",
					Data: domain.SendData{XML: `<iq type="get" id="p1" to="example.com"><ping xmlns="urn:xmpp:ping"/></iq>`}},
				{ID: "s3", Type: domain.StanzaCue, AccountAlias: "alice",
					Data: domain.CueData{MatchType: domain.MatchID, MatchExpression: "p1", Timeout: time.Second.Milliseconds()}},
			},
		}

		perf, err := eng.Play(context.Background(), comp)
		if err != nil {
			log.Fatal(err) // configuration errors are reported before anything runs
		}
		log.Println(perf.Status, perf.Summary)
	}
*/
package virtuoso
