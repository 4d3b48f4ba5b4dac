package store

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/eltorchestrator/internal/model"
)

func TestValidateJobName(t *testing.T) {
	tests := []struct {
		name    string
		jobName string
		wantErr bool
	}{
		{"empty", "", true},
		{"normal", "nightly-sync", false},
		{"max_length", strings.Repeat("a", 255), false},
		{"too_long", strings.Repeat("a", 256), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJobName(tt.jobName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJobName(%d chars) error = %v, wantErr %v", len(tt.jobName), err, tt.wantErr)
			}
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"manual", "@manual", false},
		{"valid_six_field", "0 0 9 * * *", false},
		{"five_field", "0 9 * * *", true},
		{"garbage", "nonsense", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSchedule(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTasks(t *testing.T) {
	mk := func(orders ...int) []model.TaskDefinition {
		tasks := make([]model.TaskDefinition, len(orders))
		for i, o := range orders {
			tasks[i] = model.TaskDefinition{TaskOrder: o}
		}
		return tasks
	}

	tests := []struct {
		name    string
		tasks   []model.TaskDefinition
		wantErr bool
	}{
		{"empty", nil, true},
		{"single", mk(0), false},
		{"contiguous", mk(0, 1, 2), false},
		{"gap", mk(0, 2), true},
		{"not_starting_at_zero", mk(1, 2), true},
		{"out_of_order", mk(1, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTasks(tt.tasks)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTasks(%v) error = %v, wantErr %v", tt.tasks, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNewTasks(t *testing.T) {
	mk := func(orders ...int) []NewTask {
		tasks := make([]NewTask, len(orders))
		for i, o := range orders {
			tasks[i] = NewTask{TaskOrder: o}
		}
		return tasks
	}

	tests := []struct {
		name    string
		tasks   []NewTask
		wantErr bool
	}{
		{"empty", nil, true},
		{"single", mk(0), false},
		{"contiguous", mk(0, 1, 2), false},
		{"gap", mk(0, 2), true},
		{"not_starting_at_zero", mk(1, 2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNewTasks(tt.tasks)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNewTasks(%v) error = %v, wantErr %v", tt.tasks, err, tt.wantErr)
			}
		})
	}
}
