package manifest

import "time"

// AppManifest is the top-level application block.
type AppManifest struct {
	// Name identifies the application.
	Name string `json:"name" validate:"required"`

	// Version is the manifest format version.
	Version string `json:"version,omitempty"`
}

// ResourceManifest declares one resource inside a stack.
type ResourceManifest struct {
	// ID is the resource's construct name within the stack. Unique per stack.
	ID string `json:"id" validate:"required"`

	// Type is the resource type identifier (e.g. "AWS::SQS::Queue").
	Type string `json:"type" validate:"required"`

	// Properties is the raw property bag. Values may use the reference forms
	// {"$ref": id}, {"$getAtt": [id, attr]}, and {"$expr": expression}.
	Properties map[string]interface{} `json:"properties,omitempty"`

	// DependsOn lists resource IDs this resource explicitly depends on.
	DependsOn []string `json:"dependsOn,omitempty"`

	// DeletionPolicy sets the declaration's deletion policy.
	DeletionPolicy string `json:"deletionPolicy,omitempty" validate:"omitempty,oneof=Delete Retain Snapshot"`

	// Condition names a template condition gating the declaration.
	Condition string `json:"condition,omitempty"`

	// Metadata is carried into the declaration verbatim.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// OutputManifest declares one template output.
type OutputManifest struct {
	// Value may use the reference forms like resource properties.
	Value interface{} `json:"value" validate:"required"`

	// Description is the optional output description.
	Description string `json:"description,omitempty"`
}

// StackManifest declares one stack and its resources.
type StackManifest struct {
	// Name is the stack's construct name. Unique per app.
	Name string `json:"name" validate:"required"`

	// Description is the template description.
	Description string `json:"description,omitempty"`

	// Resources lists the stack's resources in declaration order.
	Resources []ResourceManifest `json:"resources" validate:"dive"`

	// Parameters, Mappings, and Conditions are raw template sections.
	Parameters map[string]map[string]interface{} `json:"parameters,omitempty"`
	Mappings   map[string]map[string]interface{} `json:"mappings,omitempty"`
	Conditions map[string]interface{}            `json:"conditions,omitempty"`

	// Outputs lists the stack's template outputs.
	Outputs map[string]OutputManifest `json:"outputs,omitempty"`
}

// Manifest is the fully parsed application manifest.
type Manifest struct {
	// App is the application block.
	App AppManifest `json:"app"`

	// Stacks lists the declared stacks in declaration order.
	Stacks []StackManifest `json:"stacks" validate:"required,min=1,dive"`

	// Variables are manifest-level values exposed to $expr expressions.
	Variables map[string]interface{} `json:"variables,omitempty"`

	// SourceFiles are the CUE files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the manifest was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists parse and validation problems. A manifest with errors must
	// not be built into a tree.
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is a manifest problem with source location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the manifest path to the error (e.g. "stacks.Api.resources.Queue").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning).
	Severity string `json:"severity"`
}
