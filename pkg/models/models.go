package models

import (
	"time"
)

// BuildStatus values written to the model repository and the process log.
const (
	BuildStatusInProgress = "IN_PROGRESS"
	BuildStatusSuccess    = "SUCCESS"
	BuildStatusError      = "ERROR"
)

// Process types recorded in the process log.
const (
	ProcessTypeDataVault     = "DATA_VAULT"
	ProcessTypeDataWarehouse = "DATA_WAREHOUSE"
)

// SCD strategy names for dimension tables.
const (
	SCDType1 = "TYPE_1"
	SCDType2 = "TYPE_2"
	SCDType3 = "TYPE_3"
)

// HubTable defines a Data Vault hub: one row per distinct business-key tuple,
// keyed by a deterministic hash of the business-key values.
type HubTable struct {
	HubName            string   `json:"hub_name"`
	TargetSchema       string   `json:"target_schema"`
	TargetTable        string   `json:"target_table"`
	SourceQuery        string   `json:"source_query"`
	BusinessKeys       []string `json:"business_keys"`
	HubKeyColumn       string   `json:"hub_key_column"`
	LoadDateColumn     string   `json:"load_date_column"`
	RecordSourceColumn string   `json:"record_source_column"`
	IndexColumns       []string `json:"index_columns,omitempty"`
}

// LinkTable defines a Data Vault link connecting two or more hubs. Its source
// query must expose one <hub>_hub_key column per referenced hub.
type LinkTable struct {
	LinkName           string   `json:"link_name"`
	TargetSchema       string   `json:"target_schema"`
	TargetTable        string   `json:"target_table"`
	SourceQuery        string   `json:"source_query"`
	HubReferences      []string `json:"hub_references"`
	LinkKeyColumn      string   `json:"link_key_column"`
	LoadDateColumn     string   `json:"load_date_column"`
	RecordSourceColumn string   `json:"record_source_column"`
	IndexColumns       []string `json:"index_columns,omitempty"`
}

// SatelliteTable defines descriptive attributes for a hub or link, keyed by
// (parent key, load date).
type SatelliteTable struct {
	SatelliteName         string   `json:"satellite_name"`
	TargetSchema          string   `json:"target_schema"`
	TargetTable           string   `json:"target_table"`
	SourceQuery           string   `json:"source_query"`
	ParentHubName         string   `json:"parent_hub_name,omitempty"`
	ParentLinkName        string   `json:"parent_link_name,omitempty"`
	ParentKeyColumn       string   `json:"parent_key_column"`
	DescriptiveAttributes []string `json:"descriptive_attributes"`
	LoadDateColumn        string   `json:"load_date_column"`
	LoadEndDateColumn     string   `json:"load_end_date_column,omitempty"`
	IsHistorized          bool     `json:"is_historized"`
	RecordSourceColumn    string   `json:"record_source_column"`
	IndexColumns          []string `json:"index_columns,omitempty"`
}

// PointInTimeTable defines a derived table carrying, per hub key and snapshot
// date, the latest load date of each referenced satellite.
type PointInTimeTable struct {
	PitName            string   `json:"pit_name"`
	TargetSchema       string   `json:"target_schema"`
	TargetTable        string   `json:"target_table"`
	HubName            string   `json:"hub_name"`
	SatelliteNames     []string `json:"satellite_names"`
	SnapshotDateColumn string   `json:"snapshot_date_column"`
}

// BridgeTable defines a derived table carrying, per hub key and snapshot date,
// the link key in effect for each referenced link.
type BridgeTable struct {
	BridgeName         string   `json:"bridge_name"`
	TargetSchema       string   `json:"target_schema"`
	TargetTable        string   `json:"target_table"`
	HubName            string   `json:"hub_name"`
	LinkNames          []string `json:"link_names"`
	SnapshotDateColumn string   `json:"snapshot_date_column"`
}

// DataVaultModel is a complete vault definition: source and target connection
// info plus the hub/link/satellite/PIT/bridge entities to build.
type DataVaultModel struct {
	ID                     string             `json:"id,omitempty"`
	VaultName              string             `json:"vault_name"`
	Description            string             `json:"description,omitempty"`
	SourceDBEngine         string             `json:"source_db_engine"`
	SourceConnectionString string             `json:"source_connection_string"`
	TargetDBEngine         string             `json:"target_db_engine"`
	TargetConnectionString string             `json:"target_connection_string"`
	TargetSchema           string             `json:"target_schema"`
	Hubs                   []HubTable         `json:"hubs"`
	Links                  []LinkTable        `json:"links"`
	Satellites             []SatelliteTable   `json:"satellites"`
	PointInTimeTables      []PointInTimeTable `json:"point_in_time_tables,omitempty"`
	BridgeTables           []BridgeTable      `json:"bridge_tables,omitempty"`
	ScheduleCron           string             `json:"schedule_cron,omitempty"`
	Active                 bool               `json:"active"`
	Enabled                bool               `json:"enabled"`
	Metadata               map[string]string  `json:"metadata,omitempty"`
	CreatedAt              time.Time          `json:"created_at,omitempty"`
	UpdatedAt              time.Time          `json:"updated_at,omitempty"`
	LastBuildTime          *time.Time         `json:"last_build_time,omitempty"`
	LastBuildStatus        string             `json:"last_build_status,omitempty"`
}

// DimensionTable defines one warehouse dimension and its SCD strategy.
type DimensionTable struct {
	DimensionName   string   `json:"dimension_name"`
	TargetSchema    string   `json:"target_schema"`
	TargetTable     string   `json:"target_table"`
	SourceQuery     string   `json:"source_query"`
	BusinessKeys    []string `json:"business_keys"`
	SCDType         string   `json:"scd_type"`
	ValidFromColumn string   `json:"valid_from_column,omitempty"`
	ValidToColumn   string   `json:"valid_to_column,omitempty"`
	IsCurrentColumn string   `json:"is_current_column,omitempty"`
	IndexColumns    []string `json:"index_columns,omitempty"`
}

// FactTable defines one warehouse fact table, always fully reloaded.
type FactTable struct {
	FactName        string   `json:"fact_name"`
	TargetSchema    string   `json:"target_schema"`
	TargetTable     string   `json:"target_table"`
	SourceQuery     string   `json:"source_query"`
	IndexColumns    []string `json:"index_columns,omitempty"`
	PartitionColumn string   `json:"partition_column,omitempty"`
}

// DataWarehouseModel is a complete dimensional warehouse definition.
type DataWarehouseModel struct {
	ID                     string            `json:"id,omitempty"`
	WarehouseName          string            `json:"warehouse_name"`
	Description            string            `json:"description,omitempty"`
	SourceDBEngine         string            `json:"source_db_engine"`
	SourceConnectionString string            `json:"source_connection_string"`
	TargetDBEngine         string            `json:"target_db_engine"`
	TargetConnectionString string            `json:"target_connection_string"`
	TargetSchema           string            `json:"target_schema"`
	Dimensions             []DimensionTable  `json:"dimensions"`
	Facts                  []FactTable       `json:"facts"`
	ScheduleCron           string            `json:"schedule_cron,omitempty"`
	Active                 bool              `json:"active"`
	Enabled                bool              `json:"enabled"`
	Metadata               map[string]string `json:"metadata,omitempty"`
	CreatedAt              time.Time         `json:"created_at,omitempty"`
	UpdatedAt              time.Time         `json:"updated_at,omitempty"`
	LastBuildTime          *time.Time        `json:"last_build_time,omitempty"`
	LastBuildStatus        string            `json:"last_build_status,omitempty"`
}

// ProcessLogEntry is one lifecycle record for a build run.
type ProcessLogEntry struct {
	ID                 int64             `json:"id,omitempty"`
	ProcessType        string            `json:"process_type"`
	ProcessName        string            `json:"process_name"`
	Status             string            `json:"status"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            *time.Time        `json:"end_time,omitempty"`
	TotalRowsProcessed int64             `json:"total_rows_processed"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}
