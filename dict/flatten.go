/*
 * flatten.go, part of diadem.
 *
 *
 * Copyright 2024 The diadem authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package dict

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flatten reads the nested YAML mapping in path and returns one "a.b.c=value"
// argument per leaf, in document order.
func Flatten(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dict/Flatten: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("dict/Flatten: can't parse %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("dict/Flatten: %s doesn't contain a mapping", path)
	}
	return flattenNode(root, "", nil), nil
}

func flattenNode(N *yaml.Node, prefix string, parts []string) []string {
	for i := 0; i+1 < len(N.Content); i += 2 {
		key := N.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		val := N.Content[i+1]
		if val.Kind == yaml.AliasNode {
			val = val.Alias
		}
		if val.Kind == yaml.MappingNode {
			parts = flattenNode(val, key, parts)
			continue
		}
		parts = append(parts, key+"="+argValue(val))
	}
	return parts
}

//argValue renders a value the way the programs (which are Python programs)
//expect to read it back from the command line.
func argValue(N *yaml.Node) string {
	switch N.Kind {
	case yaml.SequenceNode:
		items := make([]string, 0, len(N.Content))
		for _, c := range N.Content {
			if c.Kind == yaml.ScalarNode && c.ShortTag() == "!!str" {
				items = append(items, "'"+c.Value+"'")
				continue
			}
			items = append(items, argValue(c))
		}
		return "[" + strings.Join(items, ", ") + "]"
	case yaml.ScalarNode:
		switch N.ShortTag() {
		case "!!bool":
			if strings.EqualFold(N.Value, "true") {
				return "True"
			}
			return "False"
		case "!!null":
			return "None"
		}
		return N.Value
	}
	return N.Value
}

// BuildCommand returns the program followed by the flattened settings in path,
// ready to be used as the program and arguments of a command.
func BuildCommand(program, path string) ([]string, error) {
	args, err := Flatten(path)
	if err != nil {
		return nil, err
	}
	return append([]string{program}, args...), nil
}
