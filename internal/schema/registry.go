// Package schema aligns arbitrary uploaded column headers with the fixed
// required schema of each dataset type, using greedy confidence-scored
// one-to-one assignment.
package schema

// FileType names one of the editable dataset kinds.
type FileType string

const (
	FileClients FileType = "clients"
	FileWorkers FileType = "workers"
	FileTasks   FileType = "tasks"
)

// FileTypes lists every known dataset kind.
var FileTypes = []FileType{FileClients, FileWorkers, FileTasks}

// Registry maps a dataset kind to its ordered required header list. It is
// static configuration supplied at construction so tests can substitute
// alternate schemas.
type Registry map[FileType][]string

// DefaultRegistry returns the required schemas for the three editable
// dataset kinds.
func DefaultRegistry() Registry {
	return Registry{
		FileClients: {
			"ClientID", "ClientName", "PriorityLevel",
			"RequestedTaskIDs", "GroupTag", "AttributesJSON",
		},
		FileWorkers: {
			"WorkerID", "WorkerName", "Skills", "AvailableSlots",
			"MaxLoadPerPhase", "WorkerGroup", "QualificationLevel",
		},
		FileTasks: {
			"TaskID", "TaskName", "Category", "Duration",
			"RequiredSkills", "PreferredPhases", "MaxConcurrent",
		},
	}
}

// RowHandle returns the singular row-handle name filter expressions use
// for the dataset kind.
func (ft FileType) RowHandle() string {
	switch ft {
	case FileClients:
		return "client"
	case FileWorkers:
		return "worker"
	case FileTasks:
		return "task"
	}
	return "row"
}

// Valid reports whether ft names a known dataset kind.
func (ft FileType) Valid() bool {
	for _, known := range FileTypes {
		if ft == known {
			return true
		}
	}
	return false
}
