package Tasks

import "Anvil/Models"

// Partition splits a group into active and completed work. A record is
// completed iff its actual date is non-blank.
func Partition(group []Models.TaskRecord) Models.ReconciledView {
	view := Models.ReconciledView{
		Active:    []Models.TaskRecord{},
		Completed: []Models.TaskRecord{},
	}
	for _, r := range group {
		if r.IsCompleted() {
			view.Completed = append(view.Completed, r)
		} else {
			view.Active = append(view.Active, r)
		}
	}
	view.ProgressPercent = ProgressPercent(len(view.Completed), len(view.Active)+len(view.Completed))
	return view
}

// ProgressPercent is floor(completed*100/total), and 0 for an empty group.
func ProgressPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return completed * 100 / total
}
