package main

import evently "github.com/kodabas/go-evently"

// registry returns the codec registry for every event type this
// example's streams can contain.
func registry() evently.CodecRegistry {
	return evently.CodecRegistry{
		"TodoCreated":         evently.JSONCodec[TodoCreated](),
		"TodoCompleted":       evently.JSONCodec[TodoCompleted](),
		"TodoDeleted":         evently.JSONCodec[TodoDeleted](),
		"TodoListItemAdded":   evently.JSONCodec[TodoListItemAdded](),
		"TodoListItemRemoved": evently.JSONCodec[TodoListItemRemoved](),
	}
}
