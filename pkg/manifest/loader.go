package manifest

import (
	"context"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Loader parses CUE manifest sources into a Manifest.
type Loader struct {
	ctx       *cue.Context
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewLoader creates a manifest loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		ctx:       cuecontext.New(),
		validator: validator.New(),
		logger:    logger.With().Str("component", "manifest-loader").Logger(),
	}
}

// Load parses the given CUE files or directories and unifies them into one
// manifest. Parse problems do not fail the call; they are collected in
// Manifest.Errors so callers can report all of them at once.
func (l *Loader) Load(ctx context.Context, sources []string) (*Manifest, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no manifest sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var val cue.Value
		var files []string
		var errs []ValidationError
		if info.IsDir() {
			val, files, errs = l.loadDirectory(source)
		} else {
			val, errs = l.loadFile(source)
			files = []string{source}
		}
		parseErrors = append(parseErrors, errs...)
		if val.Exists() {
			if cueValue.Exists() {
				cueValue = cueValue.Unify(val)
			} else {
				cueValue = val
			}
		}
		sourceFiles = append(sourceFiles, files...)
	}

	if len(parseErrors) > 0 {
		return &Manifest{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	if err := cueValue.Err(); err != nil {
		return &Manifest{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      convertCUEErrors(err),
		}, nil
	}

	m := l.extract(cueValue, sourceFiles)
	l.logger.Debug().
		Int("stacks", len(m.Stacks)).
		Int("errors", len(m.Errors)).
		Strs("sources", sources).
		Msg("loaded manifest")
	return m, nil
}

// LoadInline parses inline CUE content.
func (l *Loader) LoadInline(ctx context.Context, content string) (*Manifest, error) {
	val := l.ctx.CompileString(content)
	if err := val.Err(); err != nil {
		return &Manifest{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      convertCUEErrors(err),
		}, nil
	}
	return l.extract(val, []string{"inline"}), nil
}

// loadDirectory loads a directory as a CUE package.
func (l *Loader) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, convertCUEErrors(inst.Err)
	}

	val := l.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}
	return val, files, nil
}

// loadFile loads a single CUE file.
func (l *Loader) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := l.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, convertCUEErrors(err)
	}
	return val, nil
}

// extract decodes the unified CUE value into a Manifest. Structural problems
// become entries in Manifest.Errors rather than a failed call.
func (l *Loader) extract(val cue.Value, sourceFiles []string) *Manifest {
	m := &Manifest{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	appVal := val.LookupPath(cue.ParsePath("app"))
	if appVal.Exists() {
		if err := appVal.Decode(&m.App); err != nil {
			m.addError("app", fmt.Sprintf("failed to decode app block: %v", err))
		}
	} else {
		m.addError("app", "manifest is missing the app block")
	}

	varsVal := val.LookupPath(cue.ParsePath("variables"))
	if varsVal.Exists() {
		if err := varsVal.Decode(&m.Variables); err != nil {
			m.addError("variables", fmt.Sprintf("failed to decode variables: %v", err))
		}
	}

	stacksVal := val.LookupPath(cue.ParsePath("stacks"))
	if !stacksVal.Exists() {
		m.addError("stacks", "manifest declares no stacks")
		return m
	}

	switch stacksVal.Kind() {
	case cue.StructKind:
		iter, err := stacksVal.Fields(cue.All())
		if err != nil {
			m.addError("stacks", fmt.Sprintf("failed to iterate stacks: %v", err))
			return m
		}
		for iter.Next() {
			l.extractStack(m, iter.Selector().Unquoted(), iter.Value())
		}
	case cue.ListKind:
		list, err := stacksVal.List()
		if err != nil {
			m.addError("stacks", fmt.Sprintf("failed to list stacks: %v", err))
			return m
		}
		for list.Next() {
			l.extractStack(m, "", list.Value())
		}
	default:
		m.addError("stacks", fmt.Sprintf("stacks must be a struct or list, got %s", stacksVal.Kind()))
	}

	if len(m.Errors) == 0 {
		if err := l.validator.Struct(m); err != nil {
			m.addError("", fmt.Sprintf("manifest validation failed: %v", err))
		}
	}
	return m
}

// extractStack decodes one stack. When the stack comes from a struct field the
// field name wins over an inline name.
func (l *Loader) extractStack(m *Manifest, name string, val cue.Value) {
	stack := StackManifest{Name: name}
	path := "stacks." + name

	if descVal := val.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		if err := descVal.Decode(&stack.Description); err != nil {
			m.addError(path+".description", err.Error())
		}
	}
	if name == "" {
		if nameVal := val.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
			if err := nameVal.Decode(&stack.Name); err != nil {
				m.addError(path+".name", err.Error())
			}
			path = "stacks." + stack.Name
		}
	}

	resourcesVal := val.LookupPath(cue.ParsePath("resources"))
	if resourcesVal.Exists() {
		l.extractResources(m, &stack, path, resourcesVal)
	}

	for section, target := range map[string]*map[string]map[string]interface{}{
		"parameters": &stack.Parameters,
		"mappings":   &stack.Mappings,
	} {
		if sectionVal := val.LookupPath(cue.ParsePath(section)); sectionVal.Exists() {
			if err := sectionVal.Decode(target); err != nil {
				m.addError(path+"."+section, err.Error())
			}
		}
	}
	if condVal := val.LookupPath(cue.ParsePath("conditions")); condVal.Exists() {
		if err := condVal.Decode(&stack.Conditions); err != nil {
			m.addError(path+".conditions", err.Error())
		}
	}
	if outVal := val.LookupPath(cue.ParsePath("outputs")); outVal.Exists() {
		if err := outVal.Decode(&stack.Outputs); err != nil {
			m.addError(path+".outputs", err.Error())
		}
	}

	m.Stacks = append(m.Stacks, stack)
}

// extractResources decodes a stack's resources from either the struct form
// (keyed by resource id) or the list form (id inline).
func (l *Loader) extractResources(m *Manifest, stack *StackManifest, path string, val cue.Value) {
	appendResource := func(id string, rv cue.Value, errPath string) {
		var resource ResourceManifest
		if err := rv.Decode(&resource); err != nil {
			m.addError(errPath, fmt.Sprintf("failed to decode resource: %v", err))
			return
		}
		if resource.ID == "" {
			resource.ID = id
		}
		if err := l.validator.Struct(resource); err != nil {
			m.addError(errPath, fmt.Sprintf("resource validation failed: %v", err))
			return
		}
		stack.Resources = append(stack.Resources, resource)
	}

	switch val.Kind() {
	case cue.StructKind:
		iter, err := val.Fields(cue.All())
		if err != nil {
			m.addError(path+".resources", fmt.Sprintf("failed to iterate resources: %v", err))
			return
		}
		for iter.Next() {
			id := iter.Selector().Unquoted()
			appendResource(id, iter.Value(), fmt.Sprintf("%s.resources.%s", path, id))
		}
	case cue.ListKind:
		list, err := val.List()
		if err != nil {
			m.addError(path+".resources", fmt.Sprintf("failed to list resources: %v", err))
			return
		}
		idx := 0
		for list.Next() {
			appendResource("", list.Value(), fmt.Sprintf("%s.resources[%d]", path, idx))
			idx++
		}
	default:
		m.addError(path+".resources", fmt.Sprintf("resources must be a struct or list, got %s", val.Kind()))
	}
}

func (m *Manifest) addError(path, message string) {
	m.Errors = append(m.Errors, ValidationError{
		Path:     path,
		Message:  message,
		Severity: "error",
	})
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError
	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int
		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}
		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}
	return validationErrors
}
