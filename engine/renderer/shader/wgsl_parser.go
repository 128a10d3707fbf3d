package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}

// parsedSource is what pipeline creation needs from a pre-processed compute shader.
type parsedSource struct {
	entryPoint    string
	workgroupSize [3]uint32
	layouts       map[int]wgpu.BindGroupLayoutDescriptor
	varNames      map[int]map[int]string
}

var (
	structBlockRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	builtinRegex       = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex         = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)
	computeEntryRegex  = regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`)
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?,?\s*\)`)

	// bindingDeclRegex captures group, binding, address space, name and type of
	// @group(G) @binding(B) var<space> name: Type;
	bindingDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseWGSL strips comments once and extracts the entry point, workgroup size and
// buffer bind group layouts.
//
// Parameters:
//   - source: pre-processed WGSL
//   - visibility: the stage visibility given to every layout entry
//
// Returns:
//   - parsedSource: the extracted data; entryPoint is empty without a @compute function
func parseWGSL(source string, visibility wgpu.ShaderStage) parsedSource {
	cleaned := stripComments(source)
	ps := parsedSource{
		entryPoint:    parseEntryPoint(cleaned),
		workgroupSize: parseWorkgroupSize(cleaned),
	}
	ps.layouts, ps.varNames = parseBindGroupLayouts(cleaned, visibility)
	return ps
}

// parseBindGroupLayouts builds one layout descriptor per @group from the binding declarations
// of cleaned source, with entries sorted by binding and MinBindingSize resolved from the
// declared type where possible.
func parseBindGroupLayouts(cleaned string, visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	layouts := newLayoutResolver(parseStructBlocks(cleaned))
	entries := make(map[int][]wgpu.BindGroupLayoutEntry)
	varNames := make(map[int]map[int]string)

	for _, m := range bindingDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])

		entry := classifyResource(uint32(binding), visibility, strings.TrimSpace(m[3]))
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if size, ok := layouts.minBindingSize(m[5]); ok && size > 0 {
				entry.Buffer.MinBindingSize = size
			}
		}
		entries[group] = append(entries[group], entry)

		if varNames[group] == nil {
			varNames[group] = make(map[int]string)
		}
		varNames[group][binding] = m[4]
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(entries))
	for g, es := range entries {
		slices.SortFunc(es, func(a, b wgpu.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
		result[g] = wgpu.BindGroupLayoutDescriptor{Entries: es}
	}
	return result, varNames
}

// parseWorkgroupSize reads @workgroup_size(x[, y[, z]]). Missing dimensions, or a missing
// attribute, read as 1.
func parseWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupSizeRegex.FindStringSubmatch(stripComments(source))
	if m == nil {
		return size
	}
	for i, dim := range m[1:] {
		if v, err := strconv.ParseUint(dim, 10, 32); err == nil && v > 0 {
			size[i] = uint32(v)
		}
	}
	return size
}

func parseEntryPoint(source string) string {
	if m := computeEntryRegex.FindStringSubmatch(stripComments(source)); m != nil {
		return m[1]
	}
	return ""
}

func parseStructBlocks(cleaned string) []parsedStruct {
	var structs []parsedStruct
	for _, m := range structBlockRegex.FindAllStringSubmatch(cleaned, -1) {
		ps := parsedStruct{name: m[1]}
		for _, member := range splitAtTopLevelCommas(m[2]) {
			member = strings.TrimSpace(member)
			fm := fieldRegex.FindStringSubmatch(member)
			if fm == nil {
				continue
			}
			ps.fields = append(ps.fields, parsedField{
				name:      fm[1],
				typeName:  strings.TrimSpace(fm[2]),
				isBuiltin: builtinRegex.MatchString(member),
			})
		}
		structs = append(structs, ps)
	}
	return structs
}

// splitAtTopLevelCommas splits struct members without breaking array<T, N>.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
