package main

import evently "github.com/kodabas/go-evently"

// TodoListItem is one entry of the shared todo list.
type TodoListItem struct {
	TodoID string
	Title  string
}

// TodoList is the folded state of the shared list stream. Unlike Todo,
// it starts from a natural zero (an empty slice) rather than nil — the
// projection convention spec §4.5 calls out.
type TodoList []TodoListItem

// ApplyTodoList folds list-stream events into TodoList. It is used both
// as a Projection apply (via evently.LoadProjection) and, wrapped to
// match ApplyFunc, as the list aggregate's fold.
func ApplyTodoList(state TodoList, event evently.Event) TodoList {
	switch e := event.(type) {
	case TodoListItemAdded:
		return append(append(TodoList{}, state...), TodoListItem{TodoID: e.TodoID, Title: e.Title})
	case TodoListItemRemoved:
		out := make(TodoList, 0, len(state))
		for _, item := range state {
			if item.TodoID != e.TodoID {
				out = append(out, item)
			}
		}
		return out
	default:
		return state
	}
}

// listAggregateApply adapts ApplyTodoList to evently.ApplyFunc so the
// list stream can also be driven through AggregateRoot/RunCommand like
// any other aggregate, rather than only read via LoadProjection.
func listAggregateApply(state *TodoList, event evently.Event) (*TodoList, error) {
	var current TodoList
	if state != nil {
		current = *state
	}
	next := ApplyTodoList(current, event)
	return &next, nil
}
