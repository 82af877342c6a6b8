package catalog

import "strings"

// qualify resolves name against namespace per spec §3: a name containing a
// dot is already absolute; otherwise it is qualified against namespace.
func qualify(namespace, name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return namespace + "." + name
}
