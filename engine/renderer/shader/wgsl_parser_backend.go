package shader

import (
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// typeLayout is the byte size and alignment of a host-shareable WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

// stride is the distance between consecutive array elements of this type.
func (l typeLayout) stride() uint64 {
	return alignTo(l.align, l.size)
}

// alignTo rounds v up to a multiple of align, which must be a power of two.
func alignTo(align, v uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// layoutResolver computes buffer layouts for the structs declared in one shader source.
// Struct layouts are memoized; a struct that references itself, directly or not, fails to resolve.
type layoutResolver struct {
	structs  map[string]parsedStruct
	resolved map[string]typeLayout
	visiting map[string]bool
}

// newLayoutResolver indexes the parsed structs by name.
//
// Parameters:
//   - structs: every struct block of the cleaned source
//
// Returns:
//   - *layoutResolver: a resolver over those structs
func newLayoutResolver(structs []parsedStruct) *layoutResolver {
	r := &layoutResolver{
		structs:  make(map[string]parsedStruct, len(structs)),
		resolved: make(map[string]typeLayout, len(structs)),
		visiting: make(map[string]bool),
	}
	for _, ps := range structs {
		r.structs[ps.name] = ps
	}
	return r
}

// minBindingSize returns the smallest buffer a binding of typeName accepts. Runtime-sized
// arrays count as a single element so callers can scale by element count.
//
// Parameters:
//   - typeName: the declared binding type, e.g. "FogParams" or "array<vec4f>"
//
// Returns:
//   - uint64: the size in bytes
//   - bool: false when the type cannot be resolved
func (r *layoutResolver) minBindingSize(typeName string) (uint64, bool) {
	if elem, ok := runtimeArrayElement(typeName); ok {
		l, ok := r.layout(elem)
		if !ok {
			return 0, false
		}
		return l.stride(), true
	}
	l, ok := r.layout(typeName)
	if !ok {
		return 0, false
	}
	return l.size, true
}

// layout resolves a fixed-size type: scalars, vectors, matrices, atomics, fixed arrays and structs.
func (r *layoutResolver) layout(typeName string) (typeLayout, bool) {
	typeName = strings.TrimSpace(typeName)
	if l, ok := scalarLayout(typeName); ok {
		return l, true
	}
	if l, ok := vectorLayout(typeName); ok {
		return l, true
	}
	if l, ok := matrixLayout(typeName); ok {
		return l, true
	}
	if inner, ok := unwrap(typeName, "atomic"); ok {
		return scalarLayout(inner)
	}
	if inner, ok := unwrap(typeName, "array"); ok {
		elem, count, found := strings.Cut(inner, ",")
		if !found {
			return typeLayout{}, false
		}
		n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 64)
		if err != nil {
			return typeLayout{}, false
		}
		el, ok := r.layout(elem)
		if !ok {
			return typeLayout{}, false
		}
		return typeLayout{size: n * el.stride(), align: el.align}, true
	}
	return r.structLayout(typeName)
}

// structLayout places each non-builtin field at its aligned offset and pads the total to the
// struct alignment. A trailing runtime-sized array contributes only its alignment.
func (r *layoutResolver) structLayout(name string) (typeLayout, bool) {
	if l, ok := r.resolved[name]; ok {
		return l, true
	}
	ps, ok := r.structs[name]
	if !ok || r.visiting[name] {
		return typeLayout{}, false
	}
	r.visiting[name] = true
	defer delete(r.visiting, name)

	var offset uint64
	align := uint64(1)
	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		if elem, ok := runtimeArrayElement(f.typeName); ok {
			el, ok := r.layout(elem)
			if !ok {
				return typeLayout{}, false
			}
			align = max(align, el.align)
			offset = alignTo(el.align, offset)
			if offset == 0 {
				offset = el.stride()
			}
			break
		}
		fl, ok := r.layout(f.typeName)
		if !ok {
			return typeLayout{}, false
		}
		offset = alignTo(fl.align, offset) + fl.size
		align = max(align, fl.align)
	}

	l := typeLayout{size: alignTo(align, offset), align: align}
	r.resolved[name] = l
	return l, true
}

func scalarLayout(name string) (typeLayout, bool) {
	switch name {
	case "f32", "i32", "u32":
		return typeLayout{4, 4}, true
	case "f16":
		return typeLayout{2, 2}, true
	}
	return typeLayout{}, false
}

// scalarSuffix maps the vecNf style shorthand suffixes to scalar names.
var scalarSuffix = map[byte]string{'f': "f32", 'i': "i32", 'u': "u32", 'h': "f16"}

// vectorLayout handles vecN<T> and vecNT. vec3 aligns like vec4.
func vectorLayout(name string) (typeLayout, bool) {
	if len(name) < 5 || !strings.HasPrefix(name, "vec") {
		return typeLayout{}, false
	}
	n := uint64(name[3] - '0')
	if n < 2 || n > 4 {
		return typeLayout{}, false
	}
	elem, ok := componentType(name[4:])
	if !ok {
		return typeLayout{}, false
	}
	s, ok := scalarLayout(elem)
	if !ok {
		return typeLayout{}, false
	}
	align := n * s.size
	if n == 3 {
		align = 4 * s.size
	}
	return typeLayout{size: n * s.size, align: align}, true
}

// matrixLayout handles matCxR<T> and matCxRT as C columns of vecR<T>.
func matrixLayout(name string) (typeLayout, bool) {
	if len(name) < 7 || !strings.HasPrefix(name, "mat") || name[4] != 'x' {
		return typeLayout{}, false
	}
	cols := uint64(name[3] - '0')
	if cols < 2 || cols > 4 {
		return typeLayout{}, false
	}
	elem, ok := componentType(name[6:])
	if !ok {
		return typeLayout{}, false
	}
	col, ok := vectorLayout("vec" + name[5:6] + "<" + elem + ">")
	if !ok {
		return typeLayout{}, false
	}
	return typeLayout{size: cols * col.stride(), align: col.align}, true
}

// componentType reads the "<T>" or single-letter suffix following a vector or matrix shape.
func componentType(suffix string) (string, bool) {
	if inner, ok := unwrap(suffix, ""); ok {
		return inner, true
	}
	if len(suffix) == 1 {
		s, ok := scalarSuffix[suffix[0]]
		return s, ok
	}
	return "", false
}

// unwrap returns T from prefix<T>.
func unwrap(typeName, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(typeName, prefix+"<")
	if !ok || !strings.HasSuffix(rest, ">") {
		return "", false
	}
	return strings.TrimSpace(rest[:len(rest)-1]), true
}

// runtimeArrayElement returns T for array<T> with no element count.
func runtimeArrayElement(typeName string) (string, bool) {
	inner, ok := unwrap(strings.TrimSpace(typeName), "array")
	if !ok || strings.Contains(inner, ",") {
		return "", false
	}
	return inner, true
}

// classifyResource builds the layout entry for a buffer declaration. Declarations without
// an address space (textures, samplers) keep an undefined buffer type.
//
// Parameters:
//   - binding: the @binding index
//   - visibility: the shader stage visibility
//   - addressSpace: the var<...> qualifier, e.g. "uniform" or "storage, read_write"
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the layout entry
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}
	space, access, _ := strings.Cut(addressSpace, ",")
	switch strings.TrimSpace(space) {
	case "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case "storage":
		if strings.TrimSpace(access) == "read_write" {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		} else {
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		}
	}
	return entry
}

// stripComments removes // and nested /* */ comments in one pass, keeping newlines so
// line-oriented parsing still sees the same lines.
//
// Parameters:
//   - source: raw WGSL source
//
// Returns:
//   - string: source without comments
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		c := source[i]
		var next byte
		if i+1 < len(source) {
			next = source[i+1]
		}
		switch {
		case c == '/' && next == '*':
			depth++
			i++
		case c == '*' && next == '/' && depth > 0:
			depth--
			i++
		case depth > 0:
			if c == '\n' {
				sb.WriteByte(c)
			}
		case c == '/' && next == '/':
			for i < len(source) && source[i] != '\n' {
				i++
			}
			if i < len(source) {
				sb.WriteByte('\n')
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
