package ui

import (
	"github.com/desertthunder/musync/internal/tasks"
)

// progressMsg carries one engine update into the model.
type progressMsg tasks.ProgressUpdate

// doneMsg is sent once the job has returned and its progress channel is drained.
type doneMsg struct {
	result any
	err    error
}
