package Models

import "strings"

// TaskFamily describes the sheet a task lives in and how its cost column is named.
type TaskFamily struct {
	Name      string `json:"name"`
	Prefix    string `json:"prefix"`
	CostLabel string `json:"cost_label"`
}

var (
	MaintenanceFamily = TaskFamily{Name: "maintenance", Prefix: "TM", CostLabel: LabelMaintenanceCost}
	RepairFamily      = TaskFamily{Name: "repair", Prefix: "TR", CostLabel: LabelRepairCost}
)

// FamilyOf selects the family from the task number prefix. "TM" numbers are
// maintenance; every other number is treated as repair work.
func FamilyOf(taskNo string) TaskFamily {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(taskNo)), MaintenanceFamily.Prefix) {
		return MaintenanceFamily
	}
	return RepairFamily
}
