package unity

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

var ErrInvalidObjectID = errors.New("invalid object id")

// Object is a decoded top-level document of a Unity serialized file.
// Only *Material is modeled, everything else decodes to *UnknownObject.
type Object interface {
	ObjectType() string
}

type UnknownObject struct {
	Type string
}

func (o *UnknownObject) ObjectType() string { return o.Type }

// objectEntry dispatches on the object_type field injected by NormalizeYAML.
type objectEntry struct {
	Object Object
}

func (e *objectEntry) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var head struct {
		ObjectType string `yaml:"object_type"`
	}
	if err := unmarshal(&head); err != nil {
		return err
	}
	switch head.ObjectType {
	case "Material":
		var mat Material
		if err := unmarshal(&mat); err != nil {
			return fmt.Errorf("Material: %w", err)
		}
		e.Object = &mat
	default:
		e.Object = &UnknownObject{Type: head.ObjectType}
	}
	return nil
}

// DecodeDocuments decodes a Unity YAML stream into objects keyed by fileID.
func DecodeDocuments(data []byte) (map[int64]Object, error) {
	normalized, err := NormalizeYAML(data)
	if err != nil {
		return nil, err
	}
	var entries map[int64]*objectEntry
	if err := yaml.Unmarshal(normalized, &entries); err != nil {
		return nil, err
	}
	objects := make(map[int64]Object, len(entries))
	for id, e := range entries {
		if e == nil || e.Object == nil {
			objects[id] = &UnknownObject{}
			continue
		}
		objects[id] = e.Object
	}
	return objects, nil
}

type yamlNormalizer struct {
	data []byte
	pos  int
	out  bytes.Buffer
}

// NormalizeYAML rewrites Unity's YAML dialect into plain YAML.
//
//	%YAML 1.1                      (dropped)
//	%TAG !u! tag:unity3d.com,2011: (dropped)
//	--- !u!21 &2100000          -> 2100000:
//	Material:                   ->   object_type: Material
//	  m_Name: foo               ->   m_Name: foo
func NormalizeYAML(data []byte) ([]byte, error) {
	n := yamlNormalizer{data: data}
	for n.pos < len(n.data) {
		line := strings.TrimRight(n.nextLine(), "\r")
		switch {
		case strings.HasPrefix(line, "%YAML"), strings.HasPrefix(line, "%TAG"):
		case strings.HasPrefix(line, "---"):
			id, err := parseObjectID(line)
			if err != nil {
				return nil, err
			}
			n.out.WriteString(strconv.FormatInt(id, 10))
			n.out.WriteString(":\n")
		case line == "":
		case line[0] == ' ' || line[0] == '\t':
			n.out.WriteString(line)
			n.out.WriteByte('\n')
		default:
			n.out.WriteString("  object_type: ")
			n.out.WriteString(strings.ReplaceAll(line, ":", ""))
			n.out.WriteByte('\n')
		}
	}
	if n.out.Len() == 0 {
		n.out.WriteByte('\n')
	}
	return n.out.Bytes(), nil
}

// parseObjectID extracts 2 from "--- !u!104 &2".
func parseObjectID(line string) (int64, error) {
	for _, token := range strings.Fields(line) {
		if !strings.HasPrefix(token, "&") {
			continue
		}
		id, err := strconv.ParseInt(token[1:], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidObjectID, token)
		}
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidObjectID, line)
}

func (n *yamlNormalizer) nextLine() string {
	st := n.pos
	for n.pos < len(n.data) {
		if n.data[n.pos] == '\n' {
			n.pos++
			return string(n.data[st : n.pos-1])
		}
		n.pos++
	}
	return string(n.data[st:n.pos])
}
