package store

import (
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/ports"
)

// Collection names, also used as the top-level key of file backends.
const (
	CollectionCompositions = "compositions"
	CollectionPerformances = "performances"
	CollectionTemplates    = "templates"
	CollectionAccounts     = "accounts"
)

type (
	Compositions = Repository[domain.Composition, *domain.Composition]
	Performances = Repository[domain.Performance, *domain.Performance]
	Templates    = Repository[domain.Template, *domain.Template]
	Accounts     = Repository[domain.Account, *domain.Account]
)

func NewCompositions(b ports.Backend, opts ...Option) *Compositions {
	return New[domain.Composition](b, domain.PrefixComposition, opts...)
}

func NewPerformances(b ports.Backend, opts ...Option) *Performances {
	return New[domain.Performance](b, domain.PrefixPerformance, opts...)
}

func NewTemplates(b ports.Backend, opts ...Option) *Templates {
	return New[domain.Template](b, domain.PrefixTemplate, opts...)
}

// NewAccounts stores the account registry. Accounts are keyed by alias.
func NewAccounts(b ports.Backend, opts ...Option) *Accounts {
	return New[domain.Account](b, "acct", opts...)
}
