package Reports

import (
	"testing"

	"Anvil/Models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportView(t *testing.T) {
	view := Models.ReconciledView{
		Active: []Models.TaskRecord{
			{TaskNo: "TM-1", MachineName: "Conveyor Rolls 2", DoerName: "alice"},
			{TaskNo: "TR-3", MachineName: "Conveyor Rolls 4", DoerName: "alice", Cost: "40"},
		},
		Completed: []Models.TaskRecord{
			{TaskNo: "TM-2", MachineName: "Conveyor Rolls 3", ActualDate: "2024-01-02", Cost: "12"},
		},
		ProgressPercent: 33,
	}

	buf, err := ExportView(view, Summary{
		Anchor:      "SN-42",
		MachineName: "conveyor rolls 2",
		Caller:      Models.RoleContext{Role: Models.RoleUser, Username: "alice"},
		GeneratedAt: "2024-01-03 10:00:00",
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ActiveSheet, CompletedSheet, SummarySheet}, f.GetSheetList())

	active, err := f.GetRows(ActiveSheet)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, Models.LabelTaskNo, active[0][0])
	assert.Equal(t, "TR-3", active[2][0])
	assert.Equal(t, Models.LabelRepairCost, active[0][11])
	assert.Equal(t, "40", active[2][11], "repair cost column")

	style, err := f.GetCellStyle(ActiveSheet, "A1")
	require.NoError(t, err)
	assert.NotZero(t, style, "header row is styled")
	width, err := f.GetColWidth(ActiveSheet, "M")
	require.NoError(t, err)
	assert.Equal(t, 18.0, width)

	completed, err := f.GetRows(CompletedSheet)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, "2024-01-02", completed[1][6])
	assert.Equal(t, "12", completed[1][10], "maintenance cost column")

	progress, err := f.GetCellValue(SummarySheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "33", progress)
	user, err := f.GetCellValue(SummarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestExportEmptyView(t *testing.T) {
	buf, err := ExportView(Models.ReconciledView{}, Summary{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ActiveSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
