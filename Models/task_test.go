package Models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTaskRecordAliases(t *testing.T) {
	rec := NewTaskRecord([]Field{
		{Label: "Task No.", Value: "TM-7"},
		{Label: "SERIAL_NUMBER", Value: "SN-1"},
		{Label: "Machine", Value: "Crane 2"},
		{Label: "Machine Name", Value: "ignored, machine already set"},
		{Label: "Status", Value: ""},
		{Label: "Task Status", Value: "Yes"},
		{Label: "Maintenance Cost", Value: "40"},
		{Label: "Shift", Value: "night"},
	})

	assert.Equal(t, "TM-7", rec.TaskNo)
	assert.Equal(t, "SN-1", rec.SerialNo)
	assert.Equal(t, "Crane 2", rec.MachineName)
	assert.Equal(t, "Yes", rec.TaskStatus, "blank leftmost alias does not block a later one")
	assert.Equal(t, "40", rec.Cost)
	assert.Equal(t, map[string]string{"Shift": "night"}, rec.Extra)
}

func TestTaskRecordPredicates(t *testing.T) {
	assert.False(t, TaskRecord{ActualDate: "  "}.IsCompleted())
	assert.True(t, TaskRecord{ActualDate: "2024-01-01"}.IsCompleted())

	assert.True(t, TaskRecord{RequireAttachment: " YES"}.NeedsAttachment())
	assert.False(t, TaskRecord{RequireAttachment: "No"}.NeedsAttachment())
	assert.False(t, TaskRecord{}.NeedsAttachment())
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, MaintenanceFamily, FamilyOf("TM-0001"))
	assert.Equal(t, MaintenanceFamily, FamilyOf(" tm12"))
	assert.Equal(t, RepairFamily, FamilyOf("TR-4"))
	assert.Equal(t, RepairFamily, FamilyOf("42"))
	assert.Equal(t, LabelRepairCost, TaskRecord{TaskNo: "TR-4"}.Family().CostLabel)
}

func TestTaskRecordFields(t *testing.T) {
	rec := TaskRecord{TaskNo: "TR-1", Cost: "9", Extra: map[string]string{"Shift": "day"}}
	fields := rec.Fields()
	assert.Equal(t, "9", fields[LabelRepairCost])
	assert.Equal(t, "day", fields["Shift"])
	_, hasLink := fields[LabelImageLink]
	assert.False(t, hasLink)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole(" Admin "))
	assert.True(t, ParseRole("USER").Known())
	assert.False(t, ParseRole("auditor").Known())
	assert.True(t, RoleContext{Role: RoleAdmin}.IsAdmin())
}
