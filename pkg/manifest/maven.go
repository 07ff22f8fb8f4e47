package manifest

import (
	"fmt"
	"path"
	"strings"
)

// Coordinate is a parsed Maven coordinate.
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
	Extension  string
}

// ParseCoordinate parses group:artifact:version[:classifier][@ext].
func ParseCoordinate(name string) (Coordinate, error) {
	ext := "jar"
	if base, e, ok := strings.Cut(name, "@"); ok {
		name, ext = base, e
	}
	parts := strings.Split(name, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, fmt.Errorf("invalid maven coordinate %q", name)
	}
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, fmt.Errorf("invalid maven coordinate %q", name)
		}
	}
	c := Coordinate{Group: parts[0], Artifact: parts[1], Version: parts[2], Extension: ext}
	if len(parts) == 4 {
		c.Classifier = parts[3]
	}
	return c, nil
}

// Path returns the repository-relative path of the coordinate.
func (c Coordinate) Path() string {
	file := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		file += "-" + c.Classifier
	}
	file += "." + c.Extension
	return path.Join(strings.ReplaceAll(c.Group, ".", "/"), c.Artifact, c.Version, file)
}

// MavenPath derives a library path from its coordinate, optionally
// overriding the classifier.
func MavenPath(name, classifier string) (string, error) {
	c, err := ParseCoordinate(name)
	if err != nil {
		return "", err
	}
	if classifier != "" {
		c.Classifier = classifier
	}
	return c.Path(), nil
}
