package rubric

import "fmt"

// TaskSet mirrors the optional condiciones.json file that details the
// fine-grained tasks and deliverables behind each criterion. It only enriches
// the scoring prompt; presence decisions never depend on it.
type TaskSet struct {
	Exercises []ExerciseTasks `json:"ejercicios"`
}

type ExerciseTasks struct {
	Number       int        `json:"numero"`
	Tasks        []string   `json:"tareas,omitempty"`
	Scenarios    []Scenario `json:"escenarios,omitempty"`
	Deliverables []string   `json:"entregables,omitempty"`
}

type Scenario struct {
	Scenario int      `json:"escenario"`
	Tasks    []string `json:"tareas"`
}

// ForCriterion flattens the tasks attached to a criterion number, prefixing
// scenario tasks with their scenario label, plus the expected deliverables.
func (t *TaskSet) ForCriterion(n int) (tasks, deliverables []string) {
	if t == nil {
		return nil, nil
	}
	for _, ex := range t.Exercises {
		if ex.Number != n {
			continue
		}
		tasks = append(tasks, ex.Tasks...)
		for _, sc := range ex.Scenarios {
			for _, task := range sc.Tasks {
				tasks = append(tasks, fmt.Sprintf("[Escenario %d] %s", sc.Scenario, task))
			}
		}
		deliverables = ex.Deliverables
		break
	}
	return tasks, deliverables
}
