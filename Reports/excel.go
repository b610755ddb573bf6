package Reports

import (
	"bytes"
	"fmt"

	"Anvil/Models"

	"github.com/xuri/excelize/v2"
)

const (
	ActiveSheet    = "Active"
	CompletedSheet = "Completed"
	SummarySheet   = "Summary"
)

var taskHeaders = []string{
	Models.LabelTaskNo,
	Models.LabelSerialNo,
	Models.LabelMachineName,
	Models.LabelDepartment,
	Models.LabelDescription,
	Models.LabelTaskStartDate,
	Models.LabelActualDate,
	Models.LabelTaskStatus,
	Models.LabelRemarks,
	Models.LabelDoerName,
	Models.LabelMaintenanceCost,
	Models.LabelRepairCost,
	Models.LabelImageLink,
}

// taskRow lays the record out under taskHeaders. The cost lands in the
// column of the task's family.
func taskRow(t Models.TaskRecord) []interface{} {
	fields := t.Fields()
	row := make([]interface{}, len(taskHeaders))
	for i, h := range taskHeaders {
		row[i] = fields[h]
	}
	return row
}

// Summary describes who exported which view.
type Summary struct {
	Anchor      string
	MachineName string
	Caller      Models.RoleContext
	GeneratedAt string
}

// ExportView writes the view as a workbook with active, completed and summary sheets.
func ExportView(view Models.ReconciledView, summary Summary) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", ActiveSheet); err != nil {
		return nil, fmt.Errorf("error renaming sheet: %w", err)
	}
	if err := writeTasks(f, ActiveSheet, view.Active, headerStyle); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(CompletedSheet); err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeTasks(f, CompletedSheet, view.Completed, headerStyle); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Anchor", summary.Anchor},
		{"Machine", summary.MachineName},
		{"Exported By", summary.Caller.Username},
		{"Role", string(summary.Caller.Role)},
		{"Generated At", summary.GeneratedAt},
		{"Active", len(view.Active)},
		{"Completed", len(view.Completed)},
		{"Progress %", view.ProgressPercent},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("error writing summary: %w", err)
		}
	}
	if err := f.SetColStyle(SummarySheet, "A", headerStyle); err != nil {
		return nil, fmt.Errorf("error styling summary: %w", err)
	}
	if err := f.SetColWidth(SummarySheet, "A", "B", 20); err != nil {
		return nil, fmt.Errorf("error sizing summary: %w", err)
	}

	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("error writing Excel file to buffer: %w", err)
	}
	return &buf, nil
}

func writeTasks(f *excelize.File, sheet string, tasks []Models.TaskRecord, headerStyle int) error {
	headers := make([]interface{}, len(taskHeaders))
	for i, h := range taskHeaders {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("error writing headers: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("error styling %s headers: %w", sheet, err)
	}

	for i, t := range tasks {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := taskRow(t)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("error writing %s row %d: %w", sheet, i+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(taskHeaders))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
		return fmt.Errorf("error sizing %s columns: %w", sheet, err)
	}
	return nil
}
