// Constants mirroring the database string columns. The API binds these
// values directly, so the zero value ("") is excluded everywhere and
// each type has an IsValid helper for boundary validation.
package model

// Platform-level user role.
type UserRole string

const (
	RoleStudent     UserRole = "student"
	RoleBusinessman UserRole = "businessman"
	RoleSchoolAdmin UserRole = "school_admin"
	RoleAdmin       UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleStudent, RoleBusinessman, RoleSchoolAdmin, RoleAdmin:
		return true
	}
	return false
}

// Developer role inside a project. The first three are slot roles with
// at-most-one-holder semantics; anything else is a free-form label.
const (
	DevRoleFrontEnd  = "FrontEnd"
	DevRoleBackEnd   = "BackEnd"
	DevRoleFullStack = "FullStack"
	DevRoleDesigner  = "Designer"
)

// Project lifecycle status.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
)

// Outcome of a validation decision, for tasks and subtasks alike.
type ValidationStatus string

const (
	ValidationValidated ValidationStatus = "validated"
	ValidationRejected  ValidationStatus = "rejected"
	ValidationPending   ValidationStatus = "pending"
)

func (s ValidationStatus) IsValid() bool {
	switch s {
	case ValidationValidated, ValidationRejected, ValidationPending:
		return true
	}
	return false
}

// Subtask workflow status. "done" means the assignee marked it finished
// but no reviewer has recorded a decision yet.
type SubTaskStatus string

const (
	SubTaskPending   SubTaskStatus = "pending"
	SubTaskDone      SubTaskStatus = "done"
	SubTaskValidated SubTaskStatus = "validated"
	SubTaskRejected  SubTaskStatus = "rejected"
)

// Task priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}
