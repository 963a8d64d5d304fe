package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/df07/go-photon-planes/pkg/core"
)

// PBRTStatement represents a parsed PBRT statement
type PBRTStatement struct {
	Type       string               // Statement type (Camera, Shape, MakeNamedMedium, etc.)
	Subtype    string               // Quoted name after the type (perspective, bilinearmesh, medium name)
	Parameters map[string]PBRTParam // Named parameters
}

// PBRTParam represents a parameter with type and value(s)
type PBRTParam struct {
	Type   string   // Parameter type (float, rgb, point3, etc.)
	Values []string // Parameter values as strings
}

// PBRTLookAt holds the camera placement of a LookAt directive
type PBRTLookAt struct {
	Eye core.Vec3
	At  core.Vec3
	Up  core.Vec3
}

// PBRTShape is a shape together with the graphics state active when it was declared
type PBRTShape struct {
	PBRTStatement
	AreaLight          *PBRTStatement // Active AreaLightSource, nil for plain geometry
	ReverseOrientation bool
	Transformed        bool // A transform directive preceded the shape in its scope
}

// PBRTScene contains the parsed subset used to build volumetric scenes
type PBRTScene struct {
	Camera       *PBRTStatement
	LookAt       *PBRTLookAt
	Film         *PBRTStatement
	Sampler      *PBRTStatement
	Media        []PBRTStatement // MakeNamedMedium, keyed by Subtype
	CameraMedium string          // Outside medium of the camera MediumInterface
	Shapes       []PBRTShape
}

// graphicsState is the part of the PBRT attribute state that shapes inherit
type graphicsState struct {
	areaLight          *PBRTStatement
	reverseOrientation bool
	transformed        bool
}

// PBRTParser encapsulates the state and logic for parsing PBRT files
type PBRTParser struct {
	scene          *PBRTScene
	state          graphicsState
	stateStack     []graphicsState
	inWorld        bool
	statementLines []string
}

// NewPBRTParser creates a new PBRT parser instance
func NewPBRTParser() *PBRTParser {
	return &PBRTParser{scene: &PBRTScene{}}
}

// ParsePBRT parses PBRT content from an io.Reader
func ParsePBRT(reader io.Reader) (*PBRTScene, error) {
	parser := NewPBRTParser()

	scanner := bufio.NewScanner(reader)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		if err := parser.processLine(scanner.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	if err := parser.flush(); err != nil {
		return nil, fmt.Errorf("at end of file: %w", err)
	}
	if len(parser.stateStack) != 0 {
		return nil, fmt.Errorf("%d unterminated AttributeBegin blocks", len(parser.stateStack))
	}

	return parser.scene, nil
}

// LoadPBRT loads and parses a PBRT scene file
func LoadPBRT(filename string) (*PBRTScene, error) {
	if err := validateFilePath(filename); err != nil {
		return nil, err
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open PBRT file: %w", err)
	}
	defer file.Close()

	return ParsePBRT(file)
}

// processLine processes a single line of PBRT input
func (p *PBRTParser) processLine(line string) error {
	line = strings.TrimSpace(stripComment(line))
	if line == "" {
		return nil
	}

	// Block directives take no arguments
	switch line {
	case "WorldBegin", "WorldEnd", "AttributeBegin", "AttributeEnd", "ReverseOrientation":
		if err := p.flush(); err != nil {
			return err
		}
		return p.processDirective(line)
	}

	if isStatementStart(line) {
		if err := p.flush(); err != nil {
			return err
		}
		p.statementLines = []string{line}
		return nil
	}

	if len(p.statementLines) == 0 {
		return fmt.Errorf("unexpected continuation line: %s", line)
	}
	p.statementLines = append(p.statementLines, line)
	return nil
}

// stripComment removes a trailing comment that is not inside a quoted string
func stripComment(line string) string {
	inQuotes := false
	for i, char := range line {
		switch char {
		case '"':
			inQuotes = !inQuotes
		case '#':
			if !inQuotes {
				return line[:i]
			}
		}
	}
	return line
}

// processDirective applies a block directive to the graphics state
func (p *PBRTParser) processDirective(directive string) error {
	switch directive {
	case "WorldBegin":
		p.inWorld = true
		// The world starts with a fresh transform
		p.state = graphicsState{}
	case "WorldEnd":
		p.inWorld = false
	case "AttributeBegin":
		p.stateStack = append(p.stateStack, p.state)
	case "AttributeEnd":
		if len(p.stateStack) == 0 {
			return fmt.Errorf("AttributeEnd without matching AttributeBegin")
		}
		p.state = p.stateStack[len(p.stateStack)-1]
		p.stateStack = p.stateStack[:len(p.stateStack)-1]
	case "ReverseOrientation":
		p.state.reverseOrientation = !p.state.reverseOrientation
	}
	return nil
}

// flush parses and routes any accumulated statement lines
func (p *PBRTParser) flush() error {
	if len(p.statementLines) == 0 {
		return nil
	}
	fullStatement := strings.Join(p.statementLines, " ")
	p.statementLines = nil

	stmt, err := parseStatement(fullStatement)
	if err != nil {
		return fmt.Errorf("error parsing statement '%s': %w", fullStatement, err)
	}
	return p.routeStatement(stmt)
}

// routeStatement records a parsed statement in the scene or the graphics state
func (p *PBRTParser) routeStatement(stmt *PBRTStatement) error {
	switch stmt.Type {
	case "LookAt":
		lookAt, err := parseLookAt(stmt)
		if err != nil {
			return fmt.Errorf("error parsing LookAt: %w", err)
		}
		p.scene.LookAt = lookAt
	case "Camera":
		p.scene.Camera = stmt
	case "Film":
		p.scene.Film = stmt
	case "Sampler":
		p.scene.Sampler = stmt
	case "MakeNamedMedium":
		p.scene.Media = append(p.scene.Media, *stmt)
	case "MediumInterface":
		// Before the world this names the medium the camera sits in
		if !p.inWorld {
			values := stmt.Parameters["values"].Values
			if len(values) > 0 {
				p.scene.CameraMedium = values[len(values)-1]
			}
		}
	case "AreaLightSource":
		p.state.areaLight = stmt
	case "Translate", "Rotate", "Scale", "Transform", "ConcatTransform":
		p.state.transformed = true
	case "Shape":
		if !p.inWorld {
			return fmt.Errorf("shape declared before WorldBegin")
		}
		p.scene.Shapes = append(p.scene.Shapes, PBRTShape{
			PBRTStatement:      *stmt,
			AreaLight:          p.state.areaLight,
			ReverseOrientation: p.state.reverseOrientation,
			Transformed:        p.state.transformed,
		})
	}
	// Integrator, Material, LightSource and similar are accepted and ignored
	return nil
}

// validateFilePath validates a scene file path
func validateFilePath(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.Contains(filename, "\x00") {
		return fmt.Errorf("invalid file path: null bytes not allowed")
	}

	cleanPath := filepath.Clean(filename)
	if len(cleanPath) > 512 {
		return fmt.Errorf("file path too long: maximum 512 characters allowed")
	}
	if !strings.HasSuffix(strings.ToLower(cleanPath), ".pbrt") {
		return fmt.Errorf("invalid file type: only .pbrt files are allowed")
	}
	return nil
}

// parseLookAt parses the nine values eye, target and up of a LookAt statement
func parseLookAt(stmt *PBRTStatement) (*PBRTLookAt, error) {
	values := stmt.Parameters["values"].Values
	if len(values) != 9 {
		return nil, fmt.Errorf("LookAt requires 9 values, got %d", len(values))
	}

	floats, err := parseFloats(values)
	if err != nil {
		return nil, err
	}
	return &PBRTLookAt{
		Eye: core.NewVec3(floats[0], floats[1], floats[2]),
		At:  core.NewVec3(floats[3], floats[4], floats[5]),
		Up:  core.NewVec3(floats[6], floats[7], floats[8]),
	}, nil
}

// parseFloats converts every value to float64
func parseFloats(values []string) ([]float64, error) {
	floats := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number '%s': %w", v, err)
		}
		floats[i] = f
	}
	return floats, nil
}

// tokenizePBRT tokenizes a PBRT line respecting quoted strings and brackets
func tokenizePBRT(line string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	inBrackets := false

	emit := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, char := range line {
		switch {
		case char == '"' && !inBrackets:
			current.WriteRune(char)
			if inQuotes {
				emit()
			}
			inQuotes = !inQuotes
		case char == '[' && !inQuotes:
			emit()
			current.WriteRune(char)
			inBrackets = true
		case char == ']' && !inQuotes && inBrackets:
			current.WriteRune(char)
			emit()
			inBrackets = false
		case (char == ' ' || char == '\t') && !inQuotes && !inBrackets:
			emit()
		default:
			current.WriteRune(char)
		}
	}
	emit()

	return tokens
}

// bareValueStatements take unquoted numbers or names instead of parameter lists
var bareValueStatements = []string{"LookAt", "Translate", "Rotate", "Scale", "Transform", "ConcatTransform", "MediumInterface"}

// parseStatement parses a single PBRT statement
func parseStatement(line string) (*PBRTStatement, error) {
	for _, name := range bareValueStatements {
		if line == name || strings.HasPrefix(line, name+" ") {
			var values []string
			for _, field := range strings.Fields(strings.NewReplacer("[", " ", "]", " ").Replace(line[len(name):])) {
				values = append(values, strings.Trim(field, "\""))
			}
			return &PBRTStatement{
				Type:       name,
				Parameters: map[string]PBRTParam{"values": {Type: "float", Values: values}},
			}, nil
		}
	}

	// Regular statements: Type "subtype" "param type" value ...
	parts := tokenizePBRT(line)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid statement format")
	}

	stmt := &PBRTStatement{
		Type:       parts[0],
		Parameters: make(map[string]PBRTParam),
	}
	parts = parts[1:]
	if strings.HasPrefix(parts[0], "\"") && strings.HasSuffix(parts[0], "\"") && len(strings.Fields(parts[0])) == 1 {
		stmt.Subtype = strings.Trim(parts[0], "\"")
		parts = parts[1:]
	}

	for i := 0; i < len(parts); i++ {
		if !strings.HasPrefix(parts[i], "\"") {
			continue
		}
		paramParts := strings.Fields(strings.Trim(parts[i], "\""))
		if len(paramParts) != 2 {
			continue
		}

		var values []string
		if i+1 < len(parts) && !isParamDeclaration(parts[i+1]) {
			i++
			for _, v := range strings.Fields(strings.Trim(parts[i], "[]")) {
				values = append(values, strings.Trim(v, "\""))
			}
		}

		stmt.Parameters[paramParts[1]] = PBRTParam{Type: paramParts[0], Values: values}
	}

	return stmt, nil
}

// isParamDeclaration reports whether a token is a quoted "type name" pair
func isParamDeclaration(token string) bool {
	return strings.HasPrefix(token, "\"") && len(strings.Fields(strings.Trim(token, "\""))) == 2
}

// GetFloatParam extracts a float parameter from a PBRT statement
func (stmt *PBRTStatement) GetFloatParam(name string) (float64, bool) {
	values, ok := stmt.GetFloatsParam(name)
	if !ok || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

// GetFloatsParam extracts all numbers of a parameter
func (stmt *PBRTStatement) GetFloatsParam(name string) ([]float64, bool) {
	param, exists := stmt.Parameters[name]
	if !exists {
		return nil, false
	}
	values, err := parseFloats(param.Values)
	if err != nil {
		return nil, false
	}
	return values, true
}

// GetIntsParam extracts an integer array parameter
func (stmt *PBRTStatement) GetIntsParam(name string) ([]int, bool) {
	param, exists := stmt.Parameters[name]
	if !exists {
		return nil, false
	}
	ints := make([]int, len(param.Values))
	for i, v := range param.Values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, false
		}
		ints[i] = n
	}
	return ints, true
}

// GetRGBParam extracts an RGB color parameter. A single value is treated as grey.
func (stmt *PBRTStatement) GetRGBParam(name string) (core.Vec3, bool) {
	values, ok := stmt.GetFloatsParam(name)
	switch {
	case !ok:
		return core.Vec3{}, false
	case len(values) == 1:
		return core.NewVec3(values[0], values[0], values[0]), true
	case len(values) >= 3:
		return core.NewVec3(values[0], values[1], values[2]), true
	default:
		return core.Vec3{}, false
	}
}

// GetPoint3sParam extracts a point3 array parameter
func (stmt *PBRTStatement) GetPoint3sParam(name string) ([]core.Vec3, bool) {
	values, ok := stmt.GetFloatsParam(name)
	if !ok || len(values)%3 != 0 {
		return nil, false
	}
	points := make([]core.Vec3, len(values)/3)
	for i := range points {
		points[i] = core.NewVec3(values[3*i], values[3*i+1], values[3*i+2])
	}
	return points, true
}

// GetStringParam extracts a string parameter from a PBRT statement
func (stmt *PBRTStatement) GetStringParam(name string) (string, bool) {
	param, exists := stmt.Parameters[name]
	if !exists || len(param.Values) == 0 {
		return "", false
	}
	return param.Values[0], true
}

// GetIntParam extracts an integer parameter
func (stmt *PBRTStatement) GetIntParam(name string) (int, bool) {
	values, ok := stmt.GetIntsParam(name)
	if !ok || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

// isStatementStart determines if a line starts a new PBRT statement
func isStatementStart(line string) bool {
	statementTypes := []string{
		"Camera", "Film", "Sampler", "Integrator", "LookAt", "PixelFilter",
		"Material", "Shape", "LightSource", "AreaLightSource",
		"MakeNamedMedium", "MediumInterface",
		"Translate", "Rotate", "Scale", "Transform", "ConcatTransform",
		"Attribute",
	}

	for _, stmt := range statementTypes {
		if strings.HasPrefix(line, stmt+" ") || line == stmt {
			return true
		}
	}
	return false
}
