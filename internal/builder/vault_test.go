package builder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultforge/vaultforge/internal/engine"
	"github.com/vaultforge/vaultforge/internal/source"
	"github.com/vaultforge/vaultforge/pkg/logger"
	"github.com/vaultforge/vaultforge/pkg/models"
)

type fakeVaultStore struct {
	vaults   map[string]*models.DataVaultModel
	statuses []string
}

func (f *fakeVaultStore) GetVault(ctx context.Context, name string) (*models.DataVaultModel, error) {
	m, ok := f.vaults[name]
	if !ok {
		return nil, errors.New("vault not found")
	}
	return m, nil
}

func (f *fakeVaultStore) GetActiveVaults(ctx context.Context) ([]*models.DataVaultModel, error) {
	var result []*models.DataVaultModel
	for _, m := range f.vaults {
		if m.Active && m.Enabled {
			result = append(result, m)
		}
	}
	return result, nil
}

func (f *fakeVaultStore) UpdateBuildStatus(ctx context.Context, name, status string, buildTime time.Time, errorMessage string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeProcessLog struct {
	entries []models.ProcessLogEntry
}

func (f *fakeProcessLog) Record(ctx context.Context, entry models.ProcessLogEntry) (int64, error) {
	f.entries = append(f.entries, entry)
	return int64(len(f.entries)), nil
}

type noopLock struct{}

func (noopLock) Acquire(ctx context.Context) error { return nil }
func (noopLock) Release(ctx context.Context)       {}

func newTestVaultBuilder(executor engine.SourceQueryExecutor, target engine.WarehouseEngine, store VaultStore, plog ProcessLogSink) *VaultBuilder {
	return &VaultBuilder{
		store:      store,
		processLog: plog,
		logger:     logger.New("test", "test"),
		newExecutor: func(engineName string, opts source.Options) (engine.SourceQueryExecutor, error) {
			return executor, nil
		},
		newEngine: func(ctx context.Context, engineName, connString string) (engine.WarehouseEngine, error) {
			return target, nil
		},
		newLock: func(scope, modelName string) locker { return noopLock{} },
		now:     func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func customerVaultModel() *models.DataVaultModel {
	return &models.DataVaultModel{
		VaultName:              "customer_vault",
		SourceDBEngine:         engine.SourcePostgreSQL,
		SourceConnectionString: "postgres://src",
		TargetDBEngine:         engine.TargetPostgreSQL,
		TargetConnectionString: "postgres://dst",
		TargetSchema:           "vault",
		Active:                 true,
		Enabled:                true,
		Hubs: []models.HubTable{
			{
				HubName:            "customer",
				TargetTable:        "hub_customer",
				SourceQuery:        "SELECT customer_id FROM customers",
				BusinessKeys:       []string{"customer_id"},
				HubKeyColumn:       "hub_key",
				LoadDateColumn:     "load_date",
				RecordSourceColumn: "record_source",
			},
		},
		Satellites: []models.SatelliteTable{
			{
				SatelliteName:         "customer_details",
				TargetTable:           "sat_customer_details",
				SourceQuery:           "SELECT hub_key, email FROM customer_details",
				ParentHubName:         "customer",
				ParentKeyColumn:       "hub_key",
				DescriptiveAttributes: []string{"email"},
				LoadDateColumn:        "load_date",
				RecordSourceColumn:    "record_source",
			},
		},
	}
}

func TestVaultBuildEndToEnd(t *testing.T) {
	model := customerVaultModel()

	c1Key := HashKey([]string{"customer_id"}, engine.Record{"customer_id": engine.String("C1")})
	c2Key := HashKey([]string{"customer_id"}, engine.Record{"customer_id": engine.String("C2")})

	executor := &fakeExecutor{results: map[string][]engine.Record{
		"SELECT customer_id FROM customers": {
			{"customer_id": engine.String("C1")},
			{"customer_id": engine.String("C1")},
			{"customer_id": engine.String("C2")},
		},
		"SELECT hub_key, email FROM customer_details": {
			{"hub_key": engine.String(c1Key), "email": engine.String("c1@example.com")},
			{"hub_key": engine.String(c2Key), "email": engine.String("c2@example.com")},
		},
	}}
	target := newMemEngine()

	b := newTestVaultBuilder(executor, target, nil, nil)
	total, err := b.BuildModel(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	hubTable := target.table("vault", "hub_customer")
	require.NotNil(t, hubTable)
	assert.Len(t, hubTable.rows, 3)

	distinct := make(map[string]bool)
	for _, row := range hubTable.rows {
		distinct[row["hub_key"]] = true
		assert.Len(t, row["hub_key"], 64)
		assert.Equal(t, engine.SourcePostgreSQL, row["record_source"])
	}
	assert.Len(t, distinct, 2)

	satTable := target.table("vault", "sat_customer_details")
	require.NotNil(t, satTable)
	assert.Len(t, satTable.rows, 2)
	for _, row := range satTable.rows {
		assert.True(t, distinct[row["hub_key"]], "satellite parent key must match a hub key")
	}
}

func TestVaultBuildLink(t *testing.T) {
	model := customerVaultModel()
	model.Hubs = append(model.Hubs, models.HubTable{
		HubName:            "product",
		TargetTable:        "hub_product",
		SourceQuery:        "SELECT product_id FROM products",
		BusinessKeys:       []string{"product_id"},
		HubKeyColumn:       "hub_key",
		LoadDateColumn:     "load_date",
		RecordSourceColumn: "record_source",
	})
	model.Links = []models.LinkTable{
		{
			LinkName:           "customer_product",
			TargetTable:        "link_customer_product",
			SourceQuery:        "SELECT keys FROM orders",
			HubReferences:      []string{"customer", "product"},
			LinkKeyColumn:      "link_key",
			LoadDateColumn:     "load_date",
			RecordSourceColumn: "record_source",
		},
	}

	custKey := HashKey([]string{"customer_id"}, engine.Record{"customer_id": engine.String("C1")})
	prodKey := HashKey([]string{"product_id"}, engine.Record{"product_id": engine.String("P1")})

	executor := &fakeExecutor{results: map[string][]engine.Record{
		"SELECT customer_id FROM customers": {{"customer_id": engine.String("C1")}},
		"SELECT product_id FROM products":   {{"product_id": engine.String("P1")}},
		"SELECT keys FROM orders": {
			{"customer_hub_key": engine.String(custKey), "product_hub_key": engine.String(prodKey)},
		},
		"SELECT hub_key, email FROM customer_details": {},
	}}
	target := newMemEngine()

	b := newTestVaultBuilder(executor, target, nil, nil)
	_, err := b.BuildModel(context.Background(), model)
	require.NoError(t, err)

	linkTable := target.table("vault", "link_customer_product")
	require.NotNil(t, linkTable)
	require.Len(t, linkTable.rows, 1)

	row := linkTable.rows[0]
	assert.Equal(t, custKey, row["customer_hub_key"])
	assert.Equal(t, prodKey, row["product_hub_key"])

	expectedLinkKey := HashKey([]string{"customer_hub_key", "product_hub_key"}, engine.Record{
		"customer_hub_key": engine.String(custKey),
		"product_hub_key":  engine.String(prodKey),
	})
	assert.Equal(t, expectedLinkKey, row["link_key"])
}

func TestVaultBuildPointInTimeAndBridge(t *testing.T) {
	model := customerVaultModel()
	model.Hubs = append(model.Hubs, models.HubTable{
		HubName:            "product",
		TargetTable:        "hub_product",
		SourceQuery:        "SELECT product_id FROM products",
		BusinessKeys:       []string{"product_id"},
		HubKeyColumn:       "hub_key",
		LoadDateColumn:     "load_date",
		RecordSourceColumn: "record_source",
	})
	model.Links = []models.LinkTable{
		{
			LinkName:           "customer_product",
			TargetTable:        "link_customer_product",
			SourceQuery:        "SELECT keys FROM orders",
			HubReferences:      []string{"customer", "product"},
			LinkKeyColumn:      "link_key",
			LoadDateColumn:     "load_date",
			RecordSourceColumn: "record_source",
		},
	}
	model.PointInTimeTables = []models.PointInTimeTable{
		{
			PitName:            "customer_pit",
			TargetTable:        "pit_customer",
			HubName:            "customer",
			SatelliteNames:     []string{"customer_details"},
			SnapshotDateColumn: "snapshot_date",
		},
	}
	model.BridgeTables = []models.BridgeTable{
		{
			BridgeName:         "customer_bridge",
			TargetTable:        "bridge_customer",
			HubName:            "customer",
			LinkNames:          []string{"customer_product"},
			SnapshotDateColumn: "snapshot_date",
		},
	}

	custKey := HashKey([]string{"customer_id"}, engine.Record{"customer_id": engine.String("C1")})
	prodKey := HashKey([]string{"product_id"}, engine.Record{"product_id": engine.String("P1")})

	executor := &fakeExecutor{results: map[string][]engine.Record{
		"SELECT customer_id FROM customers": {{"customer_id": engine.String("C1")}},
		"SELECT product_id FROM products":   {{"product_id": engine.String("P1")}},
		"SELECT keys FROM orders": {
			{"customer_hub_key": engine.String(custKey), "product_hub_key": engine.String(prodKey)},
		},
		"SELECT hub_key, email FROM customer_details": {
			{"hub_key": engine.String(custKey), "email": engine.String("c1@example.com")},
		},
	}}
	target := newMemEngine()

	b := newTestVaultBuilder(executor, target, nil, nil)
	_, err := b.BuildModel(context.Background(), model)
	require.NoError(t, err)

	pitTable := target.table("vault", "pit_customer")
	require.NotNil(t, pitTable)
	require.Len(t, pitTable.rows, 1)
	assert.Equal(t, custKey, pitTable.rows[0]["hub_key"])
	assert.Equal(t, "2025-06-01 12:00:00", pitTable.rows[0]["customer_details_load_date"])

	bridgeTable := target.table("vault", "bridge_customer")
	require.NotNil(t, bridgeTable)
	require.Len(t, bridgeTable.rows, 1)
	assert.Equal(t, custKey, bridgeTable.rows[0]["hub_key"])
	assert.NotEmpty(t, bridgeTable.rows[0]["customer_product_link_key"])

	// Re-running the build must not duplicate PIT or bridge snapshots.
	_, err = b.BuildModel(context.Background(), model)
	require.NoError(t, err)
	assert.Len(t, pitTable.rows, 1)
	assert.Len(t, bridgeTable.rows, 1)
}

func TestVaultBuildRecordsStatusAndProcessLog(t *testing.T) {
	model := customerVaultModel()
	store := &fakeVaultStore{vaults: map[string]*models.DataVaultModel{model.VaultName: model}}
	plog := &fakeProcessLog{}

	executor := &fakeExecutor{results: map[string][]engine.Record{
		"SELECT customer_id FROM customers":           {{"customer_id": engine.String("C1")}},
		"SELECT hub_key, email FROM customer_details": {},
	}}

	b := newTestVaultBuilder(executor, newMemEngine(), store, plog)
	require.NoError(t, b.Build(context.Background(), model.VaultName))

	assert.Equal(t, []string{models.BuildStatusInProgress, models.BuildStatusSuccess}, store.statuses)
	require.Len(t, plog.entries, 2)
	assert.Equal(t, models.ProcessTypeDataVault, plog.entries[0].ProcessType)
	assert.Equal(t, models.BuildStatusInProgress, plog.entries[0].Status)
	assert.Equal(t, models.BuildStatusSuccess, plog.entries[1].Status)
	assert.Equal(t, int64(1), plog.entries[1].TotalRowsProcessed)
}

func TestVaultBuildRecordsError(t *testing.T) {
	model := customerVaultModel()
	store := &fakeVaultStore{vaults: map[string]*models.DataVaultModel{model.VaultName: model}}
	plog := &fakeProcessLog{}

	executor := &fakeExecutor{err: engine.NewQueryError(engine.SourcePostgreSQL, "q", errors.New("relation does not exist"))}

	b := newTestVaultBuilder(executor, newMemEngine(), store, plog)
	err := b.Build(context.Background(), model.VaultName)
	require.Error(t, err)
	assert.True(t, engine.IsQueryError(err))

	assert.Equal(t, []string{models.BuildStatusInProgress, models.BuildStatusError}, store.statuses)
	require.Len(t, plog.entries, 2)
	assert.Equal(t, models.BuildStatusError, plog.entries[1].Status)
	assert.Contains(t, plog.entries[1].ErrorMessage, "relation does not exist")
}

func TestVaultBuildSkipsDisabledModel(t *testing.T) {
	model := customerVaultModel()
	model.Enabled = false
	store := &fakeVaultStore{vaults: map[string]*models.DataVaultModel{model.VaultName: model}}
	plog := &fakeProcessLog{}

	b := newTestVaultBuilder(&fakeExecutor{}, newMemEngine(), store, plog)
	require.NoError(t, b.Build(context.Background(), model.VaultName))
	assert.Empty(t, store.statuses)
	assert.Empty(t, plog.entries)
}

func TestVaultBuildAllActiveContinuesOnFailure(t *testing.T) {
	good := customerVaultModel()
	bad := customerVaultModel()
	bad.VaultName = "broken_vault"
	bad.Hubs[0].SourceQuery = "SELECT boom"

	store := &fakeVaultStore{vaults: map[string]*models.DataVaultModel{
		good.VaultName: good,
		bad.VaultName:  bad,
	}}
	plog := &fakeProcessLog{}

	executor := &fakeExecutor{results: map[string][]engine.Record{
		"SELECT customer_id FROM customers":           {{"customer_id": engine.String("C1")}},
		"SELECT hub_key, email FROM customer_details": {},
	}}

	// The bad model fails validation at the engine level.
	bad.TargetDBEngine = "Exotic"

	b := newTestVaultBuilder(executor, newMemEngine(), store, plog)

	err := b.BuildAllActive(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")

	// The good vault still completed.
	assert.Contains(t, store.statuses, models.BuildStatusSuccess)
}

func TestVaultBuildSatelliteHistorized(t *testing.T) {
	model := customerVaultModel()
	model.Satellites[0].IsHistorized = true
	model.Satellites[0].LoadEndDateColumn = "load_end_date"

	custKey := HashKey([]string{"customer_id"}, engine.Record{"customer_id": engine.String("C1")})
	executor := &fakeExecutor{results: map[string][]engine.Record{
		"SELECT customer_id FROM customers": {{"customer_id": engine.String("C1")}},
		"SELECT hub_key, email FROM customer_details": {
			{"hub_key": engine.String(custKey), "email": engine.String("c1@example.com")},
		},
	}}
	target := newMemEngine()

	b := newTestVaultBuilder(executor, target, nil, nil)
	_, err := b.BuildModel(context.Background(), model)
	require.NoError(t, err)

	satTable := target.table("vault", "sat_customer_details")
	require.NotNil(t, satTable)
	require.Len(t, satTable.rows, 1)
	assert.Empty(t, satTable.rows[0]["load_end_date"], "historized rows start open-ended")
}

func TestVaultBuildUnknownEngines(t *testing.T) {
	t.Run("UnknownSource", func(t *testing.T) {
		model := customerVaultModel()
		model.SourceDBEngine = "CSV"
		err := ValidateVault(model)
		require.Error(t, err)
		assert.True(t, engine.IsUnsupportedEngine(err))
	})

	t.Run("UnknownTarget", func(t *testing.T) {
		model := customerVaultModel()
		model.TargetDBEngine = "Exotic"
		err := ValidateVault(model)
		require.Error(t, err)
		assert.True(t, engine.IsUnsupportedEngine(err))
	})
}
