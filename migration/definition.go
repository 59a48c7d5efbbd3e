package migration

import (
	"errors"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// definition is the document shape of a migration definition file. A file
// holds either a single definition or a sequence of them. JSON files are
// parsed the same way, since JSON is a subset of YAML.
type definition struct {
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	Group       string     `yaml:"group"`
	Depends     stringList `yaml:"depends"`
	Up          stepDef    `yaml:"up"`
	Down        stepDef    `yaml:"down"`
}

// stepDef is either a string with inline SQL, or a mapping with exactly one of
// the keys "sql" or "file".
type stepDef struct {
	SQL  string
	File string
	set  bool
}

func (s *stepDef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			return nil
		}
		s.SQL = node.Value
		s.set = true
	case yaml.MappingNode:
		var m struct {
			SQL  *string `yaml:"sql"`
			File *string `yaml:"file"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		switch {
		case m.SQL != nil && m.File != nil:
			return errors.New("step must define only one of 'sql' or 'file'")
		case m.SQL != nil:
			s.SQL = *m.SQL
		case m.File != nil:
			if *m.File == "" {
				return errors.New("step 'file' is empty")
			}
			s.File = *m.File
		default:
			return errors.New("step must define one of 'sql' or 'file'")
		}
		s.set = true
	default:
		return fmt.Errorf("line %d: step must be a string or a mapping", node.Line)
	}

	return nil
}

// step converts the definition into a Step, resolving file references
// relative to dir.
func (s stepDef) step(dir string) Step {
	switch {
	case !s.set:
		return Step{}
	case s.File != "":
		path := s.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return File(path)
	default:
		return SQL(s.SQL)
	}
}

// stringList accepts either a single string or a sequence of strings.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Tag != "!!null" && node.Value != "" {
			*l = []string{node.Value}
		}
		return nil
	}

	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*l = list

	return nil
}

// parseDefinitions decodes the definition file at path. Entries that can't be
// decoded or fail validation are returned as skipped, without affecting the
// other entries of the same file.
func parseDefinitions(path string, data []byte) ([]Migration, []Skipped) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []Skipped{{Path: path, Err: fmt.Errorf("failed parsing definition file: %w", err)}}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, []Skipped{{Path: path, Err: errors.New("empty definition file")}}
	}

	root := doc.Content[0]
	var nodes []*yaml.Node
	switch root.Kind {
	case yaml.MappingNode:
		nodes = []*yaml.Node{root}
	case yaml.SequenceNode:
		nodes = root.Content
	default:
		return nil, []Skipped{{
			Path: path, Err: errors.New("definition file must contain a mapping or a sequence of mappings"),
		}}
	}

	var (
		dir     = filepath.Dir(path)
		migs    []Migration
		skipped []Skipped
	)
	for i, node := range nodes {
		entry := path
		if root.Kind == yaml.SequenceNode {
			entry = fmt.Sprintf("%s[%d]", path, i)
		}

		var def definition
		if err := node.Decode(&def); err != nil {
			skipped = append(skipped, Skipped{Path: entry, Err: err})
			continue
		}
		if def.ID == "" {
			skipped = append(skipped, Skipped{Path: entry, Err: errors.New("missing 'id'")})
			continue
		}
		if !def.Up.set {
			skipped = append(skipped, Skipped{
				Path: entry, ID: def.ID,
				Err: &Error{Code: CodeInvalidMigration, ID: def.ID, Err: errors.New("missing 'up' step")},
			})
			continue
		}

		migs = append(migs, Migration{
			ID:          def.ID,
			Description: def.Description,
			Group:       def.Group,
			Depends:     []string(def.Depends),
			Up:          def.Up.step(dir),
			Down:        def.Down.step(dir),
			Source:      path,
		})
	}

	return migs, skipped
}
