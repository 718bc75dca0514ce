package domain

import "time"

// AccountReference binds a script-local alias to a wire identity.
type AccountReference struct {
	Alias string `json:"alias" yaml:"alias" mapstructure:"alias"`
	JID   string `json:"jid" yaml:"jid" mapstructure:"jid"`
}

// Account is the connection registry entry handed to the outer process on add-account.
// Credentials are owned by the outer process and never stored here.
type Account struct {
	Alias string `json:"alias" yaml:"alias"`
	JID   string `json:"jid" yaml:"jid"`
	Host  string `json:"host,omitempty" yaml:"host,omitempty"`
	Port  int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// Reference returns the script-level view of the account.
func (a Account) Reference() AccountReference {
	return AccountReference{Alias: a.Alias, JID: a.JID}
}

// EntityID implements Entity.
func (a *Account) EntityID() string { return a.Alias }

// SetEntityID implements Entity.
func (a *Account) SetEntityID(id string) { a.Alias = id }

// Stamp implements Entity. Accounts carry no timestamps.
func (a *Account) Stamp(created, updated time.Time) {}

// Stamps implements Entity.
func (a *Account) Stamps() (created, updated time.Time) { return time.Time{}, time.Time{} }
