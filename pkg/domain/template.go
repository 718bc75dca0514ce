package domain

import "time"

// Template is a reusable stanza payload.
type Template struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	XML         string    `json:"xml" yaml:"xml"`
	Created     time.Time `json:"created,omitzero" yaml:"created,omitempty"`
	Updated     time.Time `json:"updated,omitzero" yaml:"updated,omitempty"`
}

// BuiltinTemplates is the catalogue shipped with the tool.
var BuiltinTemplates = []Template{
	{ID: "builtin_presence_online", Name: "Presence (Online)", Description: "Set status to online/available", XML: `<presence/>`},
	{ID: "builtin_presence_away", Name: "Presence (Away)", Description: "Set status to away", XML: "<presence>\n  <show>away</show>\n  <status>I am away</status>\n</presence>"},
	{ID: "builtin_chat", Name: "Chat Message", Description: "Send a simple chat message", XML: "<message to=\"user@domain.com\" type=\"chat\">\n  <body>Hello World!</body>\n</message>"},
	{ID: "builtin_groupchat", Name: "Groupchat Message", Description: "Send a message to a MUC room", XML: "<message to=\"room@conference.domain.com\" type=\"groupchat\">\n  <body>Hello Room!</body>\n</message>"},
	{ID: "builtin_iq_version", Name: "IQ Version", Description: "Query software version", XML: "<iq type=\"get\" id=\"version_1\" to=\"domain.com\">\n  <query xmlns=\"jabber:iq:version\"/>\n</iq>"},
	{ID: "builtin_iq_ping", Name: "IQ Ping", Description: "Send a ping to check connectivity", XML: "<iq type=\"get\" id=\"ping_1\" to=\"domain.com\">\n  <ping xmlns=\"urn:xmpp:ping\"/>\n</iq>"},
	{ID: "builtin_disco_info", Name: "Service Discovery (Info)", Description: "Discover features of an entity", XML: "<iq type=\"get\" id=\"disco_1\" to=\"domain.com\">\n  <query xmlns=\"http://jabber.org/protocol/disco#info\"/>\n</iq>"},
	{ID: "builtin_disco_items", Name: "Service Discovery (Items)", Description: "Discover items/nodes of an entity", XML: "<iq type=\"get\" id=\"disco_2\" to=\"domain.com\">\n  <query xmlns=\"http://jabber.org/protocol/disco#items\"/>\n</iq>"},
}

// EntityID implements Entity.
func (t *Template) EntityID() string { return t.ID }

// SetEntityID implements Entity.
func (t *Template) SetEntityID(id string) { t.ID = id }

// Stamps implements Entity.
func (t *Template) Stamps() (created, updated time.Time) { return t.Created, t.Updated }

// Stamp implements Entity.
func (t *Template) Stamp(created, updated time.Time) {
	t.Created = created
	t.Updated = updated
}
