package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-fog/engine/camera"
	"github.com/Carmen-Shannon/oxy-fog/engine/fog"
	"github.com/Carmen-Shannon/oxy-fog/engine/light"
)

// structAsset is the embedded WGSL that defines a struct and the struct's type name.
type structAsset struct {
	source   string
	typeName string
}

// structAssets maps struct arguments to the GPU type assets of the engine packages.
var structAssets = map[AnnotationArg]structAsset{
	AnnotationArgCamera:      {camera.GPUCameraUniformSource, "CameraUniform"},
	AnnotationArgLight:       {light.GPULightSource, "Light"},
	AnnotationArgLightSet:    {light.GPULightSource, "LightSet"},
	AnnotationArgFogParams:   {fog.GPUFogParamsSource, "FogParams"},
	AnnotationArgVolumeLevel: {fog.GPUFogParamsSource, "VolumeLevel"},
}

type preProcessor struct {
	declarations []Annotation
}

// PreProcessor expands @oxy: annotations in WGSL source and records the bindings they declare.
type PreProcessor interface {
	// Process returns source with include annotations replaced by struct definitions and
	// group annotations replaced by binding declarations. Provider annotations are dropped
	// from the output. An asset shared by two structs is injected once.
	//
	// Parameters:
	//   - source: raw WGSL containing annotations
	//
	// Returns:
	//   - string: plain WGSL
	//   - error: the first malformed annotation
	Process(source string) (string, error)

	// Declarations returns the group and provider annotations of the last Process call in
	// source order.
	//
	// Returns:
	//   - []Annotation: the declarations
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor returns a pre-processor over the engine's struct assets.
func NewPreProcessor() PreProcessor {
	return &preProcessor{}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = nil
	injected := make(map[string]bool)

	var sb strings.Builder
	sb.Grow(len(source))
	for i, line := range strings.Split(source, "\n") {
		if i > 0 {
			sb.WriteByte('\n')
		}
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			sb.WriteString(line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			asset := structAssets[a.Args[0]]
			if !injected[asset.source] {
				injected[asset.source] = true
				sb.WriteString(asset.source)
			}
		case AnnotationTypeBindingGroup:
			fmt.Fprintf(&sb, "@group(%d) @binding(%d) %s %s: %s;",
				a.Slot.Group, a.Slot.Binding, addressSpaceArgs[a.Args[0]], a.Args[1], wgslType(a.Args[2]))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeProvider:
			p.declarations = append(p.declarations, *a)
		}
	}
	return sb.String(), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// wgslType resolves a struct argument, or array<struct argument>, to its WGSL type name.
func wgslType(arg AnnotationArg) string {
	elem := elementArg(arg)
	name := structAssets[elem].typeName
	if elem != arg {
		return "array<" + name + ">"
	}
	return name
}
