package domain

import (
	"fmt"
	"strings"
	"time"
)

type NodeKind string

const (
	KindCampaign NodeKind = "campaign"
	KindStep     NodeKind = "step"
	KindGroup    NodeKind = "group"
	KindJob      NodeKind = "job"
	KindScript   NodeKind = "script"
)

// ChildKind returns the kind one level down the hierarchy, or "" for leaves.
func (k NodeKind) ChildKind() NodeKind {
	switch k {
	case KindCampaign:
		return KindStep
	case KindStep:
		return KindGroup
	case KindGroup:
		return KindJob
	case KindJob:
		return KindScript
	}
	return ""
}

type SplitMethod string

const (
	SplitNone    SplitMethod = "no_split"
	SplitByQuery SplitMethod = "split_by_query"
	SplitByVals  SplitMethod = "split_by_vals"
)

// ChildConfig controls how a node's handler generates children.
type ChildConfig struct {
	SplitMethod SplitMethod `json:"split_method,omitempty"`
	SplitQuery  string      `json:"split_query,omitempty"`
	SplitVals   []string    `json:"split_vals,omitempty"`
	MinGroups   int         `json:"min_groups,omitempty"`
	MaxRetries  int         `json:"max_retries,omitempty"`
}

// Node is one vertex of the campaign graph. It is the only durable
// representation of scheduling state; everything the engine decides is a
// function of a Node, its resolved template, and its children.
type Node struct {
	ID       int64    `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name"`
	Fullname string   `json:"fullname"`
	ParentID int64    `json:"parent_id,omitempty"`

	Status     Status `json:"status"`
	Blocked    bool   `json:"blocked,omitempty"`
	Superseded bool   `json:"superseded,omitempty"`
	Attempt    int    `json:"attempt"`

	Handler       string            `json:"handler"`
	Block         string            `json:"block,omitempty"`
	Collections   map[string]string `json:"collections,omitempty"`
	Data          map[string]any    `json:"data,omitempty"`
	ChildConfig   ChildConfig       `json:"child_config"`
	Prerequisites []string          `json:"prerequisites,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fullname separator. Short names never contain it.
const PathSep = "/"

func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + PathSep + name
}

func ParentPath(fullname string) string {
	idx := strings.LastIndex(fullname, PathSep)
	if idx < 0 {
		return ""
	}
	return fullname[:idx]
}

func ShortName(fullname string) string {
	idx := strings.LastIndex(fullname, PathSep)
	if idx < 0 {
		return fullname
	}
	return fullname[idx+1:]
}

func ValidateName(name string) error {
	if name == "" {
		return NewConfigError("node name cannot be empty")
	}
	if strings.Contains(name, PathSep) {
		return NewConfigError(fmt.Sprintf("node name %q must not contain %q", name, PathSep))
	}
	return nil
}

// CampaignName returns the root segment of a fullname.
func CampaignName(fullname string) string {
	if idx := strings.Index(fullname, PathSep); idx >= 0 {
		return fullname[:idx]
	}
	return fullname
}

// CampaignOrigin recovers the specification name and load-time bindings a
// campaign root was created from; they are recorded on the root node's data
// at submission time.
func CampaignOrigin(root *Node) (spec string, bindings map[string]string, err error) {
	spec, _ = root.Data["specification"].(string)
	if spec == "" {
		return "", nil, NewConfigError("campaign " + root.Fullname + " has no specification recorded")
	}

	bindings = make(map[string]string)
	switch raw := root.Data["bindings"].(type) {
	case map[string]string:
		bindings = raw
	case map[string]any:
		for key, value := range raw {
			if s, ok := value.(string); ok {
				bindings[key] = s
			}
		}
	}
	return spec, bindings, nil
}

const maxPlaceholderDepth = 16

// ResolveCollections expands {name} placeholders against the node's own
// collections merged over its ancestor chain, root first. Values such as the
// owning step or group name only exist once a concrete node does, which is why
// expansion happens here and not at template-resolution time.
func ResolveCollections(chain []map[string]string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, coll := range chain {
		for k, v := range coll {
			merged[k] = v
		}
	}

	out := make(map[string]string, len(merged))
	for name := range merged {
		value, err := expandPlaceholders(name, merged, 0)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

func expandPlaceholders(name string, scope map[string]string, depth int) (string, error) {
	if depth > maxPlaceholderDepth {
		return "", NewConfigError(fmt.Sprintf("collection %q: placeholder expansion too deep, likely a reference cycle", name))
	}

	value, ok := scope[name]
	if !ok {
		return "", NewConfigError(fmt.Sprintf("collection placeholder {%s} is not defined", name))
	}

	var b strings.Builder
	rest := value
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closing := strings.Index(rest[open:], "}")
		if closing < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:open])
		ref := rest[open+1 : open+closing]
		expanded, err := expandPlaceholders(ref, scope, depth+1)
		if err != nil {
			return "", err
		}
		b.WriteString(expanded)
		rest = rest[open+closing+1:]
	}
}
