package lifecycle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/risky-biz/harmoni-hse-360-sub005/internal/models"
	appErrors "github.com/risky-biz/harmoni-hse-360-sub005/pkg/errors"
)

// Action names a workflow transition request ("submit", "approve", ...).
type Action string

// Rule describes one allowed edge in a workflow state machine.
type Rule[S ~string] struct {
	Target S
	// RequiresReason rejects the transition when no reason text is supplied.
	RequiresReason bool
	// Roles allowed to perform the action. Empty means any authenticated actor.
	Roles []models.UserRole
	// RequiredFields names entity fields that must be populated before the
	// transition is accepted; the owning service maps names to values.
	RequiredFields []string
}

func (r Rule[S]) allowsRole(role models.UserRole) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

type ruleKey[S ~string] struct {
	from   S
	action Action
}

// Machine is a static transition table for one entity type. Tables are built
// once at package init and never mutated afterwards.
type Machine[S ~string] struct {
	entity   models.EntityType
	initial  S
	rules    map[ruleKey[S]]Rule[S]
	terminal map[S]struct{}
}

type edge[S ~string] struct {
	From   S
	Action Action
	Rule   Rule[S]
}

func newMachine[S ~string](entity models.EntityType, initial S, terminal []S, edges []edge[S]) *Machine[S] {
	m := &Machine[S]{
		entity:   entity,
		initial:  initial,
		rules:    make(map[ruleKey[S]]Rule[S], len(edges)),
		terminal: make(map[S]struct{}, len(terminal)),
	}
	for _, s := range terminal {
		m.terminal[s] = struct{}{}
	}
	for _, e := range edges {
		key := ruleKey[S]{from: e.From, action: e.Action}
		if _, dup := m.rules[key]; dup {
			panic(fmt.Sprintf("duplicate transition %s/%s for %s", e.From, e.Action, entity))
		}
		m.rules[key] = e.Rule
	}
	return m
}

// Entity returns the entity type this machine governs.
func (m *Machine[S]) Entity() models.EntityType {
	return m.entity
}

// Initial returns the status newly created entities start in.
func (m *Machine[S]) Initial() S {
	return m.initial
}

// Resolve returns the rule for (current status, action) when one exists.
func (m *Machine[S]) Resolve(from S, action Action) (Rule[S], bool) {
	rule, ok := m.rules[ruleKey[S]{from: from, action: action}]
	return rule, ok
}

// IsTerminal reports whether the status admits no ordinary further
// transitions. Terminal statuses may still carry an explicit reactivation
// edge (renew, reopen) in the table.
func (m *Machine[S]) IsTerminal(s S) bool {
	_, ok := m.terminal[s]
	return ok
}

// LegalActions lists the actions available from the given status, sorted.
func (m *Machine[S]) LegalActions(from S) []Action {
	actions := make([]Action, 0, 4)
	for key := range m.rules {
		if key.from == from {
			actions = append(actions, key.action)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// Authorize validates a requested transition against the table, the actor
// role, and the reason requirement. Role checks never bypass state legality:
// an unknown (status, action) pair fails as InvalidTransition regardless of
// who asks. The returned error is one of the typed workflow errors.
func Authorize[S ~string](m *Machine[S], current S, action Action, role models.UserRole, reason string) (Rule[S], error) {
	rule, ok := m.Resolve(current, action)
	if !ok {
		return rule, appErrors.Clone(appErrors.ErrInvalidTransition, invalidTransitionMessage(m, current, action))
	}
	if !rule.allowsRole(role) {
		return rule, appErrors.ErrForbidden
	}
	if rule.RequiresReason && strings.TrimSpace(reason) == "" {
		return rule, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reason is required for %s", action))
	}
	return rule, nil
}

func invalidTransitionMessage[S ~string](m *Machine[S], current S, action Action) string {
	legal := m.LegalActions(current)
	if len(legal) == 0 {
		return fmt.Sprintf("%s in status %s admits no further actions", strings.ToLower(string(m.entity)), current)
	}
	parts := make([]string, len(legal))
	for i, a := range legal {
		parts[i] = string(a)
	}
	return fmt.Sprintf("%s is not allowed from status %s; legal actions: %s", action, current, strings.Join(parts, ", "))
}

func allowed[S ~string](m *Machine[S], status S, action Action, role models.UserRole) bool {
	rule, ok := m.Resolve(status, action)
	return ok && rule.allowsRole(role)
}
