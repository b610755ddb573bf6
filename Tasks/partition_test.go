package Tasks

import (
	"testing"

	"Anvil/Models"

	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		group     []Models.TaskRecord
		active    int
		completed int
		progress  int
	}{
		{name: "empty group", progress: 0},
		{
			name: "one of four done",
			group: []Models.TaskRecord{
				record("TM-1", "", "", "", "2024-01-02"),
				record("TM-2", "", "", "", ""),
				record("TM-3", "", "", "", "   "),
				record("TM-4", "", "", "", ""),
			},
			active: 3, completed: 1, progress: 25,
		},
		{
			name: "two of three done rounds down",
			group: []Models.TaskRecord{
				record("TM-1", "", "", "", "2024-01-02"),
				record("TM-2", "", "", "", "2024-01-03"),
				record("TM-3", "", "", "", ""),
			},
			active: 1, completed: 2, progress: 66,
		},
		{
			name: "all done",
			group: []Models.TaskRecord{
				record("TM-1", "", "", "", "2024-01-02"),
			},
			completed: 1, progress: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Partition(tt.group)
			assert.NotNil(t, view.Active)
			assert.NotNil(t, view.Completed)
			assert.Len(t, view.Active, tt.active)
			assert.Len(t, view.Completed, tt.completed)
			assert.Equal(t, tt.progress, view.ProgressPercent)
		})
	}
}
