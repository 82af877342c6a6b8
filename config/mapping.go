package config

import (
	"strings"

	"github.com/forbearing/sqlmap/catalog"
)

const (
	executorSimple = "SIMPLE"
	executorReuse  = "REUSE"
	executorBatch  = "BATCH"

	jdbcNull  = "NULL"
	jdbcOther = "OTHER"
	jdbcVchar = "VARCHAR"
)

// Mapping is the configuration document (spec §6): the switches that
// govern cache participation, lazy loading, auto-mapping and the other
// session-wide defaults every opened session inherits unless a
// statement overrides them locally.
type Mapping struct {
	CacheEnabled              bool     `json:"cache_enabled" mapstructure:"cache_enabled" yaml:"cache_enabled" default:"true"`
	LazyLoadingEnabled        bool     `json:"lazy_loading_enabled" mapstructure:"lazy_loading_enabled" yaml:"lazy_loading_enabled" default:"false"`
	AggressiveLazyLoading     bool     `json:"aggressive_lazy_loading" mapstructure:"aggressive_lazy_loading" yaml:"aggressive_lazy_loading" default:"false"`
	MultipleResultSetsEnabled bool     `json:"multiple_result_sets_enabled" mapstructure:"multiple_result_sets_enabled" yaml:"multiple_result_sets_enabled" default:"true"`
	UseColumnLabel            bool     `json:"use_column_label" mapstructure:"use_column_label" yaml:"use_column_label" default:"true"`
	UseGeneratedKeys          bool     `json:"use_generated_keys" mapstructure:"use_generated_keys" yaml:"use_generated_keys" default:"false"`
	AutoMappingBehavior       string   `json:"auto_mapping_behavior" mapstructure:"auto_mapping_behavior" yaml:"auto_mapping_behavior" default:"PARTIAL"`
	AutoMappingUnknownColumn  string   `json:"auto_mapping_unknown_column_behavior" mapstructure:"auto_mapping_unknown_column_behavior" yaml:"auto_mapping_unknown_column_behavior" default:"NONE"`
	DefaultExecutorType       string   `json:"default_executor_type" mapstructure:"default_executor_type" yaml:"default_executor_type" default:"SIMPLE"`
	DefaultStatementTimeout   int      `json:"default_statement_timeout" mapstructure:"default_statement_timeout" yaml:"default_statement_timeout" default:"0"`
	DefaultFetchSize          int      `json:"default_fetch_size" mapstructure:"default_fetch_size" yaml:"default_fetch_size" default:"0"`
	MapUnderscoreToCamelCase  bool     `json:"map_underscore_to_camel_case" mapstructure:"map_underscore_to_camel_case" yaml:"map_underscore_to_camel_case" default:"false"`
	SafeRowBoundsEnabled      bool     `json:"safe_row_bounds_enabled" mapstructure:"safe_row_bounds_enabled" yaml:"safe_row_bounds_enabled" default:"false"`
	LocalCacheScope           string   `json:"local_cache_scope" mapstructure:"local_cache_scope" yaml:"local_cache_scope" default:"SESSION"`
	JdbcTypeForNull           string   `json:"jdbc_type_for_null" mapstructure:"jdbc_type_for_null" yaml:"jdbc_type_for_null" default:"OTHER"`
	LazyLoadTriggerMethods    []string `json:"lazy_load_trigger_methods" mapstructure:"lazy_load_trigger_methods" yaml:"lazy_load_trigger_methods"`
	UseActualParamName        bool     `json:"use_actual_param_name" mapstructure:"use_actual_param_name" yaml:"use_actual_param_name" default:"true"`
	ReturnInstanceForEmptyRow bool     `json:"return_instance_for_empty_row" mapstructure:"return_instance_for_empty_row" yaml:"return_instance_for_empty_row" default:"false"`
	CallSettersOnNulls        bool     `json:"call_setters_on_nulls" mapstructure:"call_setters_on_nulls" yaml:"call_setters_on_nulls" default:"false"`
}

func (m *Mapping) setDefault() {
	if len(m.LazyLoadTriggerMethods) == 0 {
		m.LazyLoadTriggerMethods = []string{"equals", "clone", "hashCode", "toString"}
	}
}

// AutoMapping resolves the configured string to its catalog enum,
// defaulting to PARTIAL on anything unrecognized.
func (m *Mapping) AutoMapping() catalog.AutoMappingBehavior {
	switch strings.ToUpper(m.AutoMappingBehavior) {
	case "NONE":
		return catalog.AutoMapNone
	case "FULL":
		return catalog.AutoMapFull
	default:
		return catalog.AutoMapPartial
	}
}

// UnknownColumnFailing reports whether an auto-mapped column with no
// matching property should fail the mapping outright.
func (m *Mapping) UnknownColumnFailing() bool {
	return strings.ToUpper(m.AutoMappingUnknownColumn) == "FAILING"
}

// StatementScoped reports whether the configured local cache scope
// empties the first tier at the end of every statement rather than the
// whole session.
func (m *Mapping) StatementScoped() bool {
	return strings.ToUpper(m.LocalCacheScope) == "STATEMENT"
}
