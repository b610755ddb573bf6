package Tasks

import (
	"strings"

	"Anvil/Models"
)

// FilterVisible restricts records to what the caller may see. Users keep only
// the tasks they own; admins see everything. Any other role also sees
// everything and degraded is set so the caller can log the condition.
func FilterVisible(records []Models.TaskRecord, caller Models.RoleContext) (visible []Models.TaskRecord, degraded bool) {
	switch caller.Role {
	case Models.RoleAdmin:
		return records, false
	case Models.RoleUser:
		owner := strings.TrimSpace(caller.Username)
		visible = make([]Models.TaskRecord, 0, len(records))
		for _, r := range records {
			if strings.EqualFold(strings.TrimSpace(r.DoerName), owner) {
				visible = append(visible, r)
			}
		}
		return visible, false
	default:
		// TODO: decide with operations whether unknown roles should fail closed
		return records, true
	}
}
