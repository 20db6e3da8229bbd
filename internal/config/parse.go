package config

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Node is one inventory entry.
type Node struct {
	Name    string
	Address netip.Addr
}

// Nodes is an ordered inventory parsed from "name=ip,name=ip".
type Nodes []Node

// Names returns the node names in inventory order.
func (n Nodes) Names() []string {
	names := make([]string, len(n))
	for i, node := range n {
		names[i] = node.Name
	}
	return names
}

// Find looks up a node by name.
func (n Nodes) Find(name string) (Node, bool) {
	for _, node := range n {
		if node.Name == name {
			return node, true
		}
	}
	return Node{}, false
}

// Application is an Argo CD application tracking a path in the repository.
type Application struct {
	Name string
	Path string
}

// Applications is parsed from "name=path,name=path".
type Applications []Application

// NodeLabels maps node name to the labels proxk8s owns on that node.
// Parsed from "node:key=value,node:key=value".
type NodeLabels map[string]map[string]string

// For returns the declared labels for a node, never nil.
func (l NodeLabels) For(node string) map[string]string {
	if set, ok := l[node]; ok {
		return set
	}
	return map[string]string{}
}

// ParseNodes parses an inventory list. An empty string is an empty inventory.
func ParseNodes(s string) (Nodes, error) {
	var nodes Nodes
	seen := make(map[string]bool)
	for _, entry := range splitList(s) {
		name, addr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q: expected name=ip", entry)
		}
		name = strings.TrimSpace(name)
		if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
			return nil, fmt.Errorf("entry %q: invalid node name: %s", entry, strings.Join(errs, "; "))
		}
		ip, err := netip.ParseAddr(strings.TrimSpace(addr))
		if err != nil {
			return nil, fmt.Errorf("entry %q: invalid IP literal: %w", entry, err)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate node %q", name)
		}
		seen[name] = true
		nodes = append(nodes, Node{Name: name, Address: ip})
	}
	return nodes, nil
}

// ParseApplications parses the GitOps application list.
func ParseApplications(s string) (Applications, error) {
	var apps Applications
	seen := make(map[string]bool)
	for _, entry := range splitList(s) {
		name, path, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q: expected name=path", entry)
		}
		name = strings.TrimSpace(name)
		path = strings.Trim(strings.TrimSpace(path), "/")
		if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
			return nil, fmt.Errorf("entry %q: invalid application name: %s", entry, strings.Join(errs, "; "))
		}
		if path == "" {
			return nil, fmt.Errorf("entry %q: empty path", entry)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate application %q", name)
		}
		seen[name] = true
		apps = append(apps, Application{Name: name, Path: path})
	}
	return apps, nil
}

// ParseNodeLabels parses declared node labels.
func ParseNodeLabels(s string) (NodeLabels, error) {
	out := make(NodeLabels)
	for _, entry := range splitList(s) {
		node, kv, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q: expected node:key=value", entry)
		}
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q: expected node:key=value", entry)
		}
		node, key, value = strings.TrimSpace(node), strings.TrimSpace(key), strings.TrimSpace(value)
		if node == "" {
			return nil, fmt.Errorf("entry %q: empty node name", entry)
		}
		if errs := validation.IsQualifiedName(key); len(errs) > 0 {
			return nil, fmt.Errorf("entry %q: invalid label key: %s", entry, strings.Join(errs, "; "))
		}
		if errs := validation.IsValidLabelValue(value); len(errs) > 0 {
			return nil, fmt.Errorf("entry %q: invalid label value: %s", entry, strings.Join(errs, "; "))
		}
		if out[node] == nil {
			out[node] = make(map[string]string)
		}
		if prev, dup := out[node][key]; dup && prev != value {
			return nil, fmt.Errorf("entry %q: conflicting values for %s on %s", entry, key, node)
		}
		out[node][key] = value
	}
	return out, nil
}

// ParseAddressRange parses "first-last" or a CIDR into an inclusive range.
func ParseAddressRange(s string) (netip.Addr, netip.Addr, error) {
	s = strings.TrimSpace(s)
	if prefix, err := netip.ParsePrefix(s); err == nil {
		prefix = prefix.Masked()
		last := prefix.Addr()
		for next := last.Next(); next.IsValid() && prefix.Contains(next); next = next.Next() {
			last = next
		}
		return prefix.Addr(), last, nil
	}
	first, last, ok := strings.Cut(s, "-")
	if !ok {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%q: expected first-last or CIDR", s)
	}
	a, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%q: %w", s, err)
	}
	b, err := netip.ParseAddr(strings.TrimSpace(last))
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%q: %w", s, err)
	}
	if a.Is4() != b.Is4() {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%q: mixed address families", s)
	}
	if b.Less(a) {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("%q: range end before start", s)
	}
	return a, b, nil
}

// splitList splits a comma separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// compact trims entries and drops blanks from a parsed slice.
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
