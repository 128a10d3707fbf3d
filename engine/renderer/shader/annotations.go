// annotations.go parses the @oxy: comment annotations understood by the pre-processor.
//
//	//@oxy:include <struct>                                     inject a registered struct
//	//@oxy:group <group> <binding> <space> <var> <struct>       declare a buffer binding
//	//@oxy:provider <group> <binding> <identity>                name a hand-written binding
//
// <struct> may be wrapped as array<struct> in a group annotation for a runtime-sized array.
package shader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const annotationPrefix = "@oxy:"

// AnnotationType is the keyword following @oxy:.
type AnnotationType string

const (
	annotationTypeInclude      AnnotationType = "include"
	AnnotationTypeBindingGroup AnnotationType = "group"
	AnnotationTypeProvider     AnnotationType = "provider"
)

// AnnotationArg is a registered annotation argument.
type AnnotationArg string

// Struct arguments, each backed by an embedded WGSL asset.
const (
	AnnotationArgCamera      AnnotationArg = "camera"       // CameraUniform
	AnnotationArgLight       AnnotationArg = "light"        // Light
	AnnotationArgLightSet    AnnotationArg = "light_set"    // LightSet, same asset as light
	AnnotationArgFogParams   AnnotationArg = "fog_params"   // FogParams
	AnnotationArgVolumeLevel AnnotationArg = "volume_level" // VolumeLevel, same asset as fog_params
)

// Address space arguments.
const (
	annotationArgStorageTypeUniform   AnnotationArg = "storage_uniform"
	annotationArgStorageTypeRead      AnnotationArg = "storage_read"
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// Provider identities for bindings whose WGSL type is a plain array.
const (
	AnnotationArgVolume      AnnotationArg = "volume"
	AnnotationArgOutputColor AnnotationArg = "output_color"
	AnnotationArgOutputDepth AnnotationArg = "output_depth"
)

var (
	structArgs = map[AnnotationArg]bool{
		AnnotationArgCamera: true, AnnotationArgLight: true, AnnotationArgLightSet: true,
		AnnotationArgFogParams: true, AnnotationArgVolumeLevel: true,
	}
	addressSpaceArgs = map[AnnotationArg]string{
		annotationArgStorageTypeUniform:   "var<uniform>",
		annotationArgStorageTypeRead:      "var<storage, read>",
		annotationArgStorageTypeReadWrite: "var<storage, read_write>",
	}
	providerArgs = map[AnnotationArg]bool{
		AnnotationArgVolume: true, AnnotationArgOutputColor: true, AnnotationArgOutputDepth: true,
	}
)

// Slot is a @group/@binding pair.
type Slot struct {
	Group   int
	Binding int
}

// Annotation is one parsed @oxy: line.
type Annotation struct {
	Type AnnotationType

	// Args holds the arguments after the slot:
	//   - include:  struct
	//   - group:    address space, var name, struct or array<struct>
	//   - provider: identity
	Args []AnnotationArg

	// Line is 1-based.
	Line int

	// Slot is nil for include annotations.
	Slot *Slot
}

// Identity returns the name a declaration is looked up by: the var name of a group
// annotation or the identity of a provider annotation.
func (a Annotation) Identity() AnnotationArg {
	switch a.Type {
	case AnnotationTypeBindingGroup:
		return a.Args[1]
	case AnnotationTypeProvider:
		return a.Args[0]
	}
	return ""
}

// annotationSyntax describes the argument list of one annotation type.
type annotationSyntax struct {
	usage   string
	slotted bool
	arity   int
	check   func(args []AnnotationArg) error
}

var annotationSyntaxes = map[AnnotationType]annotationSyntax{
	annotationTypeInclude: {
		usage: "<struct>",
		arity: 1,
		check: func(args []AnnotationArg) error {
			return checkStruct(args[0])
		},
	},
	AnnotationTypeBindingGroup: {
		usage:   "<group> <binding> <address space> <var name> <struct>",
		slotted: true,
		arity:   5,
		check: func(args []AnnotationArg) error {
			if _, ok := addressSpaceArgs[args[0]]; !ok {
				return fmt.Errorf("unknown address space %q", args[0])
			}
			return checkStruct(elementArg(args[2]))
		},
	},
	AnnotationTypeProvider: {
		usage:   "<group> <binding> <identity>",
		slotted: true,
		arity:   3,
		check: func(args []AnnotationArg) error {
			if !providerArgs[args[0]] {
				return fmt.Errorf("unknown provider identity %q", args[0])
			}
			return nil
		},
	},
}

func checkStruct(arg AnnotationArg) error {
	if !structArgs[arg] {
		return fmt.Errorf("unknown struct type %q", arg)
	}
	return nil
}

// elementArg strips an array<...> wrapper.
func elementArg(arg AnnotationArg) AnnotationArg {
	if inner, ok := strings.CutPrefix(string(arg), "array<"); ok {
		return AnnotationArg(strings.TrimSuffix(inner, ">"))
	}
	return arg
}

// parseAnnotation parses one source line. Lines without the @oxy: prefix return nil, nil.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number used in errors
//
// Returns:
//   - *Annotation: the annotation, or nil for ordinary lines
//   - error: a line-numbered error for a malformed annotation
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	_, after, ok := strings.Cut(line, annotationPrefix)
	if !ok {
		return nil, nil
	}
	fields := strings.Fields(after)
	if len(fields) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	kind := AnnotationType(fields[0])
	syntax, ok := annotationSyntaxes[kind]
	if !ok {
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, kind)
	}
	fields = fields[1:]
	if len(fields) != syntax.arity {
		return nil, fmt.Errorf("line %d: @oxy:%s takes %s", lineNum, kind, syntax.usage)
	}

	a := &Annotation{Type: kind, Line: lineNum}
	if syntax.slotted {
		slot, err := parseSlot(fields[0], fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: @oxy:%s: %w", lineNum, kind, err)
		}
		a.Slot = &slot
		fields = fields[2:]
	}
	for _, f := range fields {
		a.Args = append(a.Args, AnnotationArg(f))
	}
	if err := syntax.check(a.Args); err != nil {
		return nil, fmt.Errorf("line %d: @oxy:%s: %w", lineNum, kind, err)
	}
	return a, nil
}

func parseSlot(group, binding string) (Slot, error) {
	g, gErr := strconv.Atoi(group)
	b, bErr := strconv.Atoi(binding)
	if err := errors.Join(gErr, bErr); err != nil {
		return Slot{}, fmt.Errorf("invalid group or binding: %w", err)
	}
	if g < 0 || b < 0 {
		return Slot{}, fmt.Errorf("negative group or binding %d/%d", g, b)
	}
	return Slot{Group: g, Binding: b}, nil
}
