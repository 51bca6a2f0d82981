package transcript

import (
	"strings"
	"time"
)

// Normalizer builds Events from raw webhook bodies. The zero value uses the
// default strategies, alias table and wall clock.
type Normalizer struct {
	Strategies []ParseStrategy
	Aliases    AliasTable
	Now        func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		Strategies: DefaultStrategies(),
		Aliases:    DefaultAliases(),
		Now:        time.Now,
	}
}

// Normalize parses body with the first strategy that accepts it and resolves
// every field through the alias table. It has no side effects.
func (n *Normalizer) Normalize(body []byte, contentType string) (Event, error) {
	fields, ok := n.parse(body, contentType)
	if !ok {
		return Event{}, ErrMissingBody
	}

	aliases := n.Aliases
	if aliases == nil {
		aliases = DefaultAliases()
	}

	text, ok := aliases.Lookup(fields, FieldTranscript)
	if !ok {
		return Event{}, ErrMissingTranscript
	}

	name := resolve(aliases, fields, FieldName, DefaultName)
	caller := resolve(aliases, fields, FieldCaller, name)

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	return Event{
		Name:         name,
		PhoneNumber:  resolve(aliases, fields, FieldPhoneNumber, DefaultPhoneNumber),
		EmailAddress: resolve(aliases, fields, FieldEmailAddress, DefaultEmailAddress),
		Transcript:   strings.Trim(text, "\r\n"),
		Caller:       caller,
		ReceivedAt:   now(),
	}, nil
}

func (n *Normalizer) parse(body []byte, contentType string) (Fields, bool) {
	strategies := n.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	for _, s := range strategies {
		if fields, ok := s.Parse(body, contentType); ok {
			return fields, true
		}
	}
	return nil, false
}

func resolve(aliases AliasTable, fields Fields, field Field, fallback string) string {
	if v, ok := aliases.Lookup(fields, field); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}
