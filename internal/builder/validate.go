package builder

import (
	"fmt"

	"github.com/vaultforge/vaultforge/internal/engine"
	"github.com/vaultforge/vaultforge/pkg/models"
)

func isSourceEngine(name string) bool {
	for _, candidate := range engine.SourceEngineNames() {
		if name == candidate {
			return true
		}
	}
	return false
}

func isTargetEngine(name string) bool {
	for _, candidate := range engine.TargetEngineNames() {
		if name == candidate {
			return true
		}
	}
	return false
}

// ValidateVault checks a vault model before any I/O. Unknown engine names and
// missing required fields fail the build immediately.
func ValidateVault(m *models.DataVaultModel) error {
	if m.VaultName == "" {
		return engine.NewValidationError("", "vault name is required")
	}
	if !isSourceEngine(m.SourceDBEngine) {
		return engine.NewUnsupportedEngineError("source", m.SourceDBEngine)
	}
	if !isTargetEngine(m.TargetDBEngine) {
		return engine.NewUnsupportedEngineError("target", m.TargetDBEngine)
	}
	if m.SourceConnectionString == "" {
		return engine.NewValidationError(m.VaultName, "source connection string is required")
	}
	if m.TargetConnectionString == "" {
		return engine.NewValidationError(m.VaultName, "target connection string is required")
	}
	if m.TargetSchema == "" {
		return engine.NewValidationError(m.VaultName, "target schema is required")
	}
	if len(m.Hubs) == 0 {
		return engine.NewValidationError(m.VaultName, "at least one hub is required")
	}

	hubNames := make(map[string]bool, len(m.Hubs))
	for _, hub := range m.Hubs {
		if hub.HubName == "" {
			return engine.NewValidationError(m.VaultName, "hub name is required")
		}
		if hub.TargetTable == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("hub '%s' has no target table", hub.HubName))
		}
		if hub.SourceQuery == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("hub '%s' has no source query", hub.HubName))
		}
		if len(hub.BusinessKeys) == 0 {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("hub '%s' has no business keys", hub.HubName))
		}
		if hub.HubKeyColumn == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("hub '%s' has no hub key column", hub.HubName))
		}
		if hub.LoadDateColumn == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("hub '%s' has no load date column", hub.HubName))
		}
		if hub.RecordSourceColumn == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("hub '%s' has no record source column", hub.HubName))
		}
		hubNames[hub.HubName] = true
	}

	linkNames := make(map[string]bool, len(m.Links))
	for _, link := range m.Links {
		if link.LinkName == "" {
			return engine.NewValidationError(m.VaultName, "link name is required")
		}
		if link.TargetTable == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("link '%s' has no target table", link.LinkName))
		}
		if link.SourceQuery == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("link '%s' has no source query", link.LinkName))
		}
		if len(link.HubReferences) < 2 {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("link '%s' must reference at least two hubs", link.LinkName))
		}
		for _, ref := range link.HubReferences {
			if !hubNames[ref] {
				return engine.NewValidationError(m.VaultName, fmt.Sprintf("link '%s' references unknown hub '%s'", link.LinkName, ref))
			}
		}
		if link.LinkKeyColumn == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("link '%s' has no link key column", link.LinkName))
		}
		linkNames[link.LinkName] = true
	}

	satelliteNames := make(map[string]bool, len(m.Satellites))
	for _, sat := range m.Satellites {
		if sat.SatelliteName == "" {
			return engine.NewValidationError(m.VaultName, "satellite name is required")
		}
		if sat.TargetTable == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("satellite '%s' has no target table", sat.SatelliteName))
		}
		if sat.SourceQuery == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("satellite '%s' has no source query", sat.SatelliteName))
		}
		if sat.ParentKeyColumn == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("satellite '%s' has no parent key column", sat.SatelliteName))
		}
		if sat.LoadDateColumn == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("satellite '%s' has no load date column", sat.SatelliteName))
		}
		if sat.IsHistorized && sat.LoadEndDateColumn == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("historized satellite '%s' has no load end date column", sat.SatelliteName))
		}
		if sat.ParentHubName != "" && !hubNames[sat.ParentHubName] {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("satellite '%s' references unknown hub '%s'", sat.SatelliteName, sat.ParentHubName))
		}
		if sat.ParentLinkName != "" && !linkNames[sat.ParentLinkName] {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("satellite '%s' references unknown link '%s'", sat.SatelliteName, sat.ParentLinkName))
		}
		satelliteNames[sat.SatelliteName] = true
	}

	for _, pit := range m.PointInTimeTables {
		if pit.PitName == "" {
			return engine.NewValidationError(m.VaultName, "point-in-time table name is required")
		}
		if pit.TargetTable == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("point-in-time table '%s' has no target table", pit.PitName))
		}
		if !hubNames[pit.HubName] {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("point-in-time table '%s' references unknown hub '%s'", pit.PitName, pit.HubName))
		}
		if len(pit.SatelliteNames) == 0 {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("point-in-time table '%s' references no satellites", pit.PitName))
		}
		for _, name := range pit.SatelliteNames {
			if !satelliteNames[name] {
				return engine.NewValidationError(m.VaultName, fmt.Sprintf("point-in-time table '%s' references unknown satellite '%s'", pit.PitName, name))
			}
		}
		if pit.SnapshotDateColumn == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("point-in-time table '%s' has no snapshot date column", pit.PitName))
		}
	}

	for _, bridge := range m.BridgeTables {
		if bridge.BridgeName == "" {
			return engine.NewValidationError(m.VaultName, "bridge table name is required")
		}
		if bridge.TargetTable == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("bridge table '%s' has no target table", bridge.BridgeName))
		}
		if !hubNames[bridge.HubName] {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("bridge table '%s' references unknown hub '%s'", bridge.BridgeName, bridge.HubName))
		}
		if len(bridge.LinkNames) == 0 {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("bridge table '%s' references no links", bridge.BridgeName))
		}
		for _, name := range bridge.LinkNames {
			if !linkNames[name] {
				return engine.NewValidationError(m.VaultName, fmt.Sprintf("bridge table '%s' references unknown link '%s'", bridge.BridgeName, name))
			}
		}
		if bridge.SnapshotDateColumn == "" {
			return engine.NewValidationError(m.VaultName, fmt.Sprintf("bridge table '%s' has no snapshot date column", bridge.BridgeName))
		}
	}

	return nil
}

// ValidateWarehouse checks a warehouse model before any I/O.
func ValidateWarehouse(m *models.DataWarehouseModel) error {
	if m.WarehouseName == "" {
		return engine.NewValidationError("", "warehouse name is required")
	}
	if !isSourceEngine(m.SourceDBEngine) {
		return engine.NewUnsupportedEngineError("source", m.SourceDBEngine)
	}
	if !isTargetEngine(m.TargetDBEngine) {
		return engine.NewUnsupportedEngineError("target", m.TargetDBEngine)
	}
	if m.SourceConnectionString == "" {
		return engine.NewValidationError(m.WarehouseName, "source connection string is required")
	}
	if m.TargetConnectionString == "" {
		return engine.NewValidationError(m.WarehouseName, "target connection string is required")
	}
	if m.TargetSchema == "" {
		return engine.NewValidationError(m.WarehouseName, "target schema is required")
	}
	if len(m.Dimensions) == 0 && len(m.Facts) == 0 {
		return engine.NewValidationError(m.WarehouseName, "at least one dimension or fact is required")
	}

	for _, dim := range m.Dimensions {
		if dim.DimensionName == "" {
			return engine.NewValidationError(m.WarehouseName, "dimension name is required")
		}
		if dim.TargetTable == "" {
			return engine.NewValidationError(m.WarehouseName, fmt.Sprintf("dimension '%s' has no target table", dim.DimensionName))
		}
		if dim.SourceQuery == "" {
			return engine.NewValidationError(m.WarehouseName, fmt.Sprintf("dimension '%s' has no source query", dim.DimensionName))
		}
		if len(dim.BusinessKeys) == 0 {
			return engine.NewValidationError(m.WarehouseName, fmt.Sprintf("dimension '%s' has no business keys", dim.DimensionName))
		}
		switch dim.SCDType {
		case models.SCDType1, models.SCDType3:
		case models.SCDType2:
			if dim.ValidFromColumn == "" || dim.ValidToColumn == "" || dim.IsCurrentColumn == "" {
				return engine.NewValidationError(m.WarehouseName,
					fmt.Sprintf("dimension '%s' uses SCD type 2 and requires valid_from, valid_to and is_current columns", dim.DimensionName))
			}
		default:
			return engine.NewValidationError(m.WarehouseName,
				fmt.Sprintf("dimension '%s' has unknown SCD type '%s'", dim.DimensionName, dim.SCDType))
		}
	}

	for _, fact := range m.Facts {
		if fact.FactName == "" {
			return engine.NewValidationError(m.WarehouseName, "fact name is required")
		}
		if fact.TargetTable == "" {
			return engine.NewValidationError(m.WarehouseName, fmt.Sprintf("fact '%s' has no target table", fact.FactName))
		}
		if fact.SourceQuery == "" {
			return engine.NewValidationError(m.WarehouseName, fmt.Sprintf("fact '%s' has no source query", fact.FactName))
		}
	}

	return nil
}
