package Tasks

import (
	"errors"
	"strings"

	"Anvil/Models"
)

var ErrAnchorNotFound = errors.New("tasks: no record matches the requested serial or task number")

// FamilyKeywords unions sibling machines of one type into a single view,
// e.g. every "Conveyor Rolls N".
var FamilyKeywords = []string{"conveyor", "rolls", "crane", "pump", "stand"}

func normalizeMachine(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IdentityOf derives the machine identity of an anchor record.
func IdentityOf(anchor Models.TaskRecord) Models.MachineIdentity {
	id := Models.MachineIdentity{BaseName: normalizeMachine(anchor.MachineName)}
	for _, kw := range FamilyKeywords {
		if strings.Contains(id.BaseName, kw) {
			id.Keywords = append(id.Keywords, kw)
		}
	}
	return id
}

type groupRule struct {
	id Models.MachineIdentity
}

// Matches reports whether a machine name belongs to the identity: an exact
// normalised match, or a family keyword contained in both names.
func (g groupRule) Matches(machineName string) bool {
	name := normalizeMachine(machineName)
	if name == g.id.BaseName {
		return true
	}
	for _, kw := range g.id.Keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// FindAnchor returns the first record whose serial or task number equals key.
func FindAnchor(records []Models.TaskRecord, key string) (Models.TaskRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Models.TaskRecord{}, ErrAnchorNotFound
	}
	for _, r := range records {
		if strings.TrimSpace(r.SerialNo) == key || strings.TrimSpace(r.TaskNo) == key {
			return r, nil
		}
	}
	return Models.TaskRecord{}, ErrAnchorNotFound
}

// ResolveGroup returns every record that shares the anchor's machine or
// machine family. Admins get the whole input. Each task number appears once,
// in input order.
func ResolveGroup(records []Models.TaskRecord, anchorKey string, caller Models.RoleContext) ([]Models.TaskRecord, Models.MachineIdentity, error) {
	anchor, err := FindAnchor(records, anchorKey)
	if err != nil {
		return nil, Models.MachineIdentity{}, err
	}
	id := IdentityOf(anchor)
	rule := groupRule{id: id}

	seen := make(map[string]bool, len(records))
	group := make([]Models.TaskRecord, 0, len(records))
	for _, r := range records {
		if !caller.IsAdmin() && !rule.Matches(r.MachineName) {
			continue
		}
		if r.TaskNo != "" {
			if seen[r.TaskNo] {
				continue
			}
			seen[r.TaskNo] = true
		}
		group = append(group, r)
	}
	return group, id, nil
}
