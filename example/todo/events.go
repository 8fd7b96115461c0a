package main

// TodoCreated is emitted when a new todo item is added.
type TodoCreated struct {
	ID    string
	Title string
}

func (TodoCreated) EventType() string { return "TodoCreated" }

// TodoCompleted is emitted when a todo item is marked done.
type TodoCompleted struct{}

func (TodoCompleted) EventType() string { return "TodoCompleted" }

// TodoDeleted is emitted when a todo item is removed.
type TodoDeleted struct{}

func (TodoDeleted) EventType() string { return "TodoDeleted" }

// TodoListItemAdded is emitted on the shared list stream when a todo
// joins the list, driven by a TodoCreated reaction (spec §4.6 example).
type TodoListItemAdded struct {
	TodoID string
	Title  string
}

func (TodoListItemAdded) EventType() string { return "TodoListItemAdded" }

// TodoListItemRemoved removes a todo from the list when the list stream
// is folded. Nothing in this example emits it: DeleteTodo does not touch
// the list stream.
type TodoListItemRemoved struct {
	TodoID string
}

func (TodoListItemRemoved) EventType() string { return "TodoListItemRemoved" }
