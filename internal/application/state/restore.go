package state

import (
	"slices"

	"github.com/taskmaster/agenda/internal/domain/entities"
)

// Restore puts a previously captured collection back in place.
type Restore func(st *State)

// Then chains two restore points; they run in reverse capture order.
func (r Restore) Then(next Restore) Restore {
	if r == nil {
		return next
	}
	if next == nil {
		return r
	}
	return func(st *State) {
		next(st)
		r(st)
	}
}

// CaptureTasks saves the task collection.
func CaptureTasks(st *State) Restore {
	saved := slices.Clone(st.Tasks)
	return func(st *State) { st.Tasks = slices.Clone(saved) }
}

// CaptureExams saves the exam collection.
func CaptureExams(st *State) Restore {
	saved := slices.Clone(st.Exams)
	return func(st *State) { st.Exams = slices.Clone(saved) }
}

// CaptureList saves one shopping list partition.
func CaptureList(st *State, list string) Restore {
	saved := slices.Clone(st.Shopping[list])
	return func(st *State) { st.Shopping[list] = slices.Clone(saved) }
}

// CaptureProjects saves the whole project tree, tasks included.
func CaptureProjects(st *State) Restore {
	saved := cloneProjects(st.Projects)
	return func(st *State) { st.Projects = cloneProjects(saved) }
}

// CaptureProject saves a single project and its tasks. On restore the project
// goes back to its original position, or is re-inserted there if it was removed.
func CaptureProject(st *State, id string) Restore {
	idx, ok := st.FindProject(id)
	if !ok {
		return func(*State) {}
	}
	saved := st.Projects[idx].Clone()
	return func(st *State) {
		if cur, ok := st.FindProject(id); ok {
			st.Projects[cur] = saved.Clone()
			return
		}
		at := min(idx, len(st.Projects))
		st.Projects = slices.Insert(st.Projects, at, saved.Clone())
	}
}

// ReplaceProjectRow swaps in the persisted project fields but keeps the local tasks.
func ReplaceProjectRow(st *State, p entities.Project) {
	if i, ok := st.FindProject(p.ID); ok {
		p.Tasks = st.Projects[i].Tasks
		st.Projects[i] = p
	}
}
