// Package catalog is the mapping compiler (component G): it parses mapping
// documents into a process-wide, read-only-after-bootstrap registry of
// statements, result maps, sql fragments and caches, resolving
// <include>/<cache-ref>/extends cross-references along the way.
//
// Compilation is modeled as the source's own "Builder -> Compiled" phase
// transition (spec §9 design note): a *Builder* accumulates mutable,
// possibly-pending entries across pass 1 (Emit) and pass 2 (Resolve); a
// successful Build() produces an immutable *Catalog*. There is no runtime
// flag distinguishing the two phases — the type itself does.
package catalog

import (
	"reflect"

	"github.com/forbearing/sqlmap/sqlnode"
)

// CommandKind is a statement's SQL command kind.
type CommandKind int

const (
	Select CommandKind = iota
	Insert
	Update
	Delete
)

func (k CommandKind) String() string {
	switch k {
	case Select:
		return "SELECT"
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParamMode is a parameter descriptor's binding direction.
type ParamMode int

const (
	In ParamMode = iota
	Out
	InOut
)

// ParameterDescriptor is the compile-time contract between a Static
// Source's "?" placeholders and the binder (spec §3).
type ParameterDescriptor struct {
	Ordinal      int
	Path         string
	AppType      reflect.Type // nil when opaque, resolved lazily by the binder
	DBType       string
	Mode         ParamMode
	Codec        string // named codec override, empty for registry default
	NumericScale int
	HasScale     bool
}

// SQLSource is either a StaticSource or a DynamicSource.
type SQLSource interface {
	isSQLSource()
	// Dynamic reports whether the source must be re-evaluated per
	// invocation (true) or was fixed at compile time (false).
	Dynamic() bool
}

// StaticSource is SQL text that was free of dynamic nodes, ${...}
// interpolation and dynamic <include> at compile time: the Token-Parameter
// Parser ran once, during compilation, producing fixed SQL plus an ordered
// descriptor list (spec §4.4, §4.6).
type StaticSource struct {
	SQL    string
	Params []ParameterDescriptor
}

func (StaticSource) isSQLSource()  {}
func (StaticSource) Dynamic() bool { return false }

// DynamicSource wraps a sqlnode.Node tree re-evaluated on every invocation.
type DynamicSource struct {
	Root sqlnode.Node
}

func (DynamicSource) isSQLSource()  {}
func (DynamicSource) Dynamic() bool { return true }

// KeyGenerator configures how generated primary keys are obtained.
type KeyGenerator struct {
	UseGeneratedKeys bool
	KeyProperty      string
	KeyColumn        string
	// KeyType selects the identifier generator used when the driver
	// cannot return a generated key itself (useGeneratedKeys=false with
	// a pre-assigned key, e.g. keyProperty type "uuid" or "xid").
	KeyType string // "", "uuid", "xid"
}

// Statement is a compiled <select>/<insert>/<update>/<delete> (spec §3).
type Statement struct {
	QualifiedName string
	Namespace     string
	Command       CommandKind
	Source        SQLSource
	ParamType     reflect.Type // optional, nil if untyped
	ResultMaps    []string     // qualified names from resultMap/resultType; a SELECT declaring neither compiles with an empty list
	FlushCache    bool
	UseCache      bool
	FetchSize     int
	HasFetchSize  bool
	Timeout       int
	HasTimeout    bool
	KeyGen        KeyGenerator
	DatabaseID    string
}

// AutoMappingBehavior controls how unmapped result columns are handled
// (spec §4.9, §6).
type AutoMappingBehavior int

const (
	AutoMapNone AutoMappingBehavior = iota
	AutoMapPartial
	AutoMapFull
)

// NestedQuery is a lazy/eager sub-select keyed by a column value.
type NestedQuery struct {
	Statement string
	Column    string
	Lazy      bool
	// Collection is true for <collection select="...">  (one-to-many,
	// appends to a slice property); false for <association select="...">
	// (one-to-one, sets a single property).
	Collection bool
}

// NestedResultMap is a joined association/collection mapping.
type NestedResultMap struct {
	ResultMap    string
	ColumnPrefix string
	NotNullCols  []string
	// Collection is true for <collection> (one-to-many, appends to a
	// slice property); false for <association> (one-to-one, sets a
	// single property).
	Collection bool
}

// ResultMapping is one <id>/<result>/<association>/<collection>/
// <constructor-arg> entry (spec §3).
type ResultMapping struct {
	Property    string
	Column      string
	AppType     reflect.Type
	DBType      string
	Codec       string
	Constructor bool
	ID          bool
	Nested      *NestedResultMap // mutually exclusive with NestedQuery and leaf codec
	NestedQuery *NestedQuery
}

// Discriminator resolves a row to a case-specific result map via one
// column's decoded value (spec §4.9).
type Discriminator struct {
	Column  string
	AppType reflect.Type
	DBType  string
	Cases   map[string]string // decoded value (stringified) -> result map qualified name
}

// ResultMap is a compiled <resultMap> (spec §3).
type ResultMap struct {
	QualifiedName string
	Namespace     string
	Type          reflect.Type
	Mappings      []ResultMapping
	Discriminator *Discriminator
	Extends       string // qualified name of the parent map, empty if none
	AutoMapping   AutoMappingBehavior
	HasAutoMap    bool // whether autoMapping was explicitly set on this map
	ReturnInstanceForEmptyRow bool
}

// CacheEviction is the eviction strategy named by a <cache> element.
type CacheEviction string

const (
	EvictionLRU CacheEviction = "LRU"
	EvictionFIFO CacheEviction = "FIFO"
)

// CacheConfig is a namespace's second-tier cache configuration (spec §4.5,
// §6's <cache> element).
type CacheConfig struct {
	Namespace     string
	Eviction      CacheEviction
	Size          int
	FlushInterval int // seconds, 0 means never
	ReadOnly      bool
	Blocking      bool
	// RefNamespace is set when this namespace declared <cache-ref> instead
	// of <cache>: the effective config is the referenced namespace's.
	RefNamespace string
}

// SQLFragment is a named <sql> fragment available to <include>.
type SQLFragment struct {
	QualifiedName string
	Namespace     string
	Raw           rawNode // unresolved body, substituted in place at include sites
}
