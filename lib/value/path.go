// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import "strings"

// Path addresses a spec inside a layer: "/World/Cube" for a prim,
// "/World/Cube.size" for a property. The absolute root is "/".
type Path string

// RootPath is the absolute root of every layer.
const RootPath Path = "/"

func (p Path) String() string { return string(p) }

// IsAbsolute reports whether p starts at the root.
func (p Path) IsAbsolute() bool { return strings.HasPrefix(string(p), "/") }

// IsRoot reports whether p is the absolute root.
func (p Path) IsRoot() bool { return p == RootPath }

// IsProperty reports whether p names a property of a prim.
func (p Path) IsProperty() bool {
	s := string(p)
	return strings.LastIndexByte(s, '.') > strings.LastIndexByte(s, '/')
}

// Parent returns the owning path: the prim for a property, the parent
// prim for a prim, the root for a top-level prim. The root and the
// empty path have no parent and return "".
func (p Path) Parent() Path {
	s := string(p)
	if s == "" || p == RootPath {
		return ""
	}
	slash := strings.LastIndexByte(s, '/')
	if dot := strings.LastIndexByte(s, '.'); dot > slash {
		return Path(s[:dot])
	}
	switch {
	case slash < 0:
		return ""
	case slash == 0:
		return RootPath
	}
	return Path(s[:slash])
}

// Name returns the final element of p.
func (p Path) Name() string {
	s := string(p)
	slash := strings.LastIndexByte(s, '/')
	if dot := strings.LastIndexByte(s, '.'); dot > slash {
		return s[dot+1:]
	}
	return s[slash+1:]
}

// AppendChild returns the path of child prim name under p.
func (p Path) AppendChild(name string) Path {
	if p == RootPath {
		return Path("/" + name)
	}
	return Path(string(p) + "/" + name)
}

// AppendProperty returns the path of property name on p.
func (p Path) AppendProperty(name string) Path {
	return Path(string(p) + "." + name)
}

// HasPrefix reports whether p equals prefix or lies beneath it.
func (p Path) HasPrefix(prefix Path) bool {
	if prefix == RootPath {
		return p.IsAbsolute()
	}
	if !strings.HasPrefix(string(p), string(prefix)) {
		return false
	}
	if len(p) == len(prefix) {
		return true
	}
	next := p[len(prefix)]
	return next == '/' || next == '.'
}

// ReplacePrefix rewrites the leading oldPrefix of p with newPrefix. It
// returns false and p unchanged when p is not under oldPrefix. The root
// cannot be replaced.
func (p Path) ReplacePrefix(oldPrefix, newPrefix Path) (Path, bool) {
	if oldPrefix == RootPath || !p.HasPrefix(oldPrefix) {
		return p, false
	}
	return newPrefix + p[len(oldPrefix):], true
}
