package scene

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"` // Name accepted by Load
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`               // "builtin" or "pbrt"
	FilePath    string `json:"filePath,omitempty"` // Path to PBRT file (pbrt type only)
}

// builtInScenes lists the scenes constructed in code
var builtInScenes = []SceneInfo{
	{
		ID:          "default",
		Name:        "Default Scene",
		Description: "Single emitter above a ground quad with a floating blocker",
		Type:        "builtin",
	},
	{
		ID:          "cornell",
		Name:        "Cornell Box",
		Description: "Fog-filled Cornell box with two boxes",
		Type:        "builtin",
	},
}

// Load resolves a built-in scene ID or a PBRT file path
func Load(name string) (*Scene, error) {
	switch name {
	case "default", "":
		return NewDefaultScene(), nil
	case "cornell", "cornell-box":
		return NewCornellScene(), nil
	}
	if strings.HasSuffix(strings.ToLower(name), ".pbrt") {
		return NewPBRTScene(name)
	}
	return nil, fmt.Errorf("unknown scene %q", name)
}

// ListScenes returns the built-in scenes followed by the PBRT files found in dir
func ListScenes(dir string) ([]SceneInfo, error) {
	scenes := append([]SceneInfo(nil), builtInScenes...)
	if dir == "" {
		return scenes, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.pbrt"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
	}

	var pbrtScenes []SceneInfo
	for _, filePath := range files {
		sceneInfo, err := ParsePBRTMetadata(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse metadata for %s: %w", filePath, err)
		}
		pbrtScenes = append(pbrtScenes, sceneInfo)
	}

	sort.Slice(pbrtScenes, func(i, j int) bool {
		return pbrtScenes[i].Name < pbrtScenes[j].Name
	})

	return append(scenes, pbrtScenes...), nil
}

// ParsePBRTMetadata extracts metadata from PBRT file header comments
func ParsePBRTMetadata(filePath string) (SceneInfo, error) {
	nameWithoutExt := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	sceneInfo := SceneInfo{
		ID:       filePath,
		Name:     titleCase(nameWithoutExt),
		Type:     "pbrt",
		FilePath: filePath,
	}

	file, err := os.Open(filePath)
	if err != nil {
		return sceneInfo, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Stop parsing at first non-comment line
		if !strings.HasPrefix(line, "#") {
			break
		}

		content := strings.TrimSpace(strings.TrimPrefix(line, "#"))
		if value, ok := strings.CutPrefix(content, "Scene:"); ok {
			sceneInfo.Name = strings.TrimSpace(value)
		} else if value, ok := strings.CutPrefix(content, "Description:"); ok {
			sceneInfo.Description = strings.TrimSpace(value)
		}
	}

	return sceneInfo, scanner.Err()
}

// titleCase converts a filename-style string to title case
// e.g., "fog-corridor" -> "Fog Corridor"
func titleCase(s string) string {
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)

	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}

	return strings.Join(words, " ")
}
